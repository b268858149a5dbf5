package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotLoggedIn is returned by transports when the session credential has
// expired or was rejected. The orchestration layer reacts by dropping any
// cached token and re-authenticating.
var ErrNotLoggedIn = errors.New("gateway: not logged in")

// Gateway submits one batch of requests and blocks for the response
// envelope. Implementations never retry internally; retry policy belongs
// to the callers.
type Gateway interface {
	Submit(ctx context.Context, b *Batch) (*Envelope, error)
}

// Authenticator is implemented by transports that own the login handshake.
// A successful login returns a reusable opaque session token.
type Authenticator interface {
	Login(ctx context.Context, provider, username, password, token string) (string, error)
}

// Request is one typed call inside a batch.
type Request interface {
	Kind() Kind
}

// Response is one typed result inside an envelope.
type Response interface {
	Kind() Kind
}

// Batch is an ordered set of requests sharing the player's position.
type Batch struct {
	ID  string
	Lat float64
	Lng float64

	Requests []Request
}

// NewBatch creates an empty batch stamped with the player position.
func NewBatch(lat, lng float64) *Batch {
	return &Batch{ID: uuid.NewString(), Lat: lat, Lng: lng}
}

// Add appends requests to the batch and returns it for chaining.
func (b *Batch) Add(reqs ...Request) *Batch {
	b.Requests = append(b.Requests, reqs...)
	return b
}

// Envelope is the response batch. Responses appear in request order but
// callers must tolerate missing entries.
type Envelope struct {
	Responses []Response
}

// Find returns the first response of the given kind, or nil.
func (e *Envelope) Find(k Kind) Response {
	if e == nil {
		return nil
	}
	for _, r := range e.Responses {
		if r.Kind() == k {
			return r
		}
	}
	return nil
}

// ----- Request variants -----

// GetPlayerRequest fetches the account profile.
type GetPlayerRequest struct{}

// GetInventoryRequest fetches the full inventory snapshot.
type GetInventoryRequest struct{}

// GetHatchedEggsRequest collects rewards for eggs that finished walking.
type GetHatchedEggsRequest struct{}

// GetMapObjectsRequest fetches map content for a set of cells.
type GetMapObjectsRequest struct {
	CellIDs         []uint64
	SinceTimestamps []int64
	Lat             float64
	Lng             float64
}

// EncounterRequest opens an encounter with a wild spawn.
type EncounterRequest struct {
	EncounterID  uint64
	SpawnPointID string
	PlayerLat    float64
	PlayerLng    float64
}

// CatchRequest throws a container at the encountered creature.
type CatchRequest struct {
	EncounterID           uint64
	SpawnPointID          string
	Ball                  ItemID
	NormalizedReticleSize float64
	SpinModifier          float64
	NormalizedHitPosition float64
	HitCreature           bool
}

// UseItemCaptureRequest consumes a capture-aid item for the encounter.
type UseItemCaptureRequest struct {
	ItemID       ItemID
	EncounterID  uint64
	SpawnPointID string
}

// FortSearchRequest spins a point of interest.
type FortSearchRequest struct {
	FortID    string
	FortLat   float64
	FortLng   float64
	PlayerLat float64
	PlayerLng float64
}

// RecycleItemRequest discards a count of one item kind.
type RecycleItemRequest struct {
	ItemID ItemID
	Count  int
}

// ReleaseRequest transfers an owned creature for candy.
type ReleaseRequest struct {
	CreatureID uint64
}

// EvolveRequest promotes an owned creature to its next stage.
type EvolveRequest struct {
	CreatureID uint64
}

// NicknameRequest renames an owned creature.
type NicknameRequest struct {
	CreatureID uint64
	Nickname   string
}

// UseItemEggIncubatorRequest assigns an egg to an incubator.
type UseItemEggIncubatorRequest struct {
	IncubatorID string
	EggID       uint64
}

func (GetPlayerRequest) Kind() Kind           { return KindGetPlayer }
func (GetInventoryRequest) Kind() Kind        { return KindGetInventory }
func (GetHatchedEggsRequest) Kind() Kind      { return KindGetHatchedEggs }
func (GetMapObjectsRequest) Kind() Kind       { return KindGetMapObjects }
func (EncounterRequest) Kind() Kind           { return KindEncounter }
func (CatchRequest) Kind() Kind               { return KindCatch }
func (UseItemCaptureRequest) Kind() Kind      { return KindUseItemCapture }
func (FortSearchRequest) Kind() Kind          { return KindFortSearch }
func (RecycleItemRequest) Kind() Kind         { return KindRecycleItem }
func (ReleaseRequest) Kind() Kind             { return KindRelease }
func (EvolveRequest) Kind() Kind              { return KindEvolve }
func (NicknameRequest) Kind() Kind            { return KindNickname }
func (UseItemEggIncubatorRequest) Kind() Kind { return KindUseItemEggIncubator }

// ----- Response variants -----

// GetPlayerResponse carries the account profile.
type GetPlayerResponse struct {
	Success bool
	Player  PlayerData
}

// ItemCount is one item stack: kind and held count.
type ItemCount struct {
	ID    ItemID
	Count int
}

// InventoryEntry is a tagged union: exactly one field is set.
type InventoryEntry struct {
	Item       *ItemCount
	Stats      *PlayerStats
	Creature   *CreatureData
	Candy      *FamilyCandy
	Incubators []Incubator
}

// GetInventoryResponse carries the full inventory snapshot.
type GetInventoryResponse struct {
	Success bool
	Entries []InventoryEntry
}

// GetHatchedEggsResponse carries rewards for hatched eggs.
type GetHatchedEggsResponse struct {
	Success           bool
	ExperienceAwarded []int
}

// MapCell is one cell of map content.
type MapCell struct {
	Forts []Fort
	Wild  []WildCreature
}

// GetMapObjectsResponse carries map content for the requested cells.
type GetMapObjectsResponse struct {
	Cells []MapCell
}

// EncounterResponse carries the encounter outcome.
type EncounterResponse struct {
	Status             EncounterStatus
	Creature           *CreatureData
	CaptureProbability []float64 // indexed by container tier
}

// CatchResponse carries the throw outcome.
type CatchResponse struct {
	Status       CatchStatus
	XPAwards     []int
	CandyAwarded int
}

// UseItemCaptureResponse acknowledges a capture-aid item.
type UseItemCaptureResponse struct {
	Success           bool
	CaptureMultiplier float64
}

// FortSearchResponse carries the spin outcome.
type FortSearchResponse struct {
	Result            FortSearchResult
	ExperienceAwarded int
	Items             []ItemCount
}

// RecycleItemResponse acknowledges a discard.
type RecycleItemResponse struct {
	Result   RecycleResult
	ItemID   ItemID
	NewCount int
}

// ReleaseResponse acknowledges a release.
type ReleaseResponse struct {
	Result       ReleaseResult
	CandyAwarded int
}

// EvolveResponse acknowledges a promotion.
type EvolveResponse struct {
	Result            EvolveResult
	Evolved           *CreatureData
	ExperienceAwarded int
	CandyAwarded      int
}

// NicknameResponse acknowledges a rename.
type NicknameResponse struct {
	Success bool
}

// UseItemEggIncubatorResponse acknowledges an incubator assignment.
type UseItemEggIncubatorResponse struct {
	Result    IncubatorResult
	Incubator *Incubator
}

func (GetPlayerResponse) Kind() Kind           { return KindGetPlayer }
func (GetInventoryResponse) Kind() Kind        { return KindGetInventory }
func (GetHatchedEggsResponse) Kind() Kind      { return KindGetHatchedEggs }
func (GetMapObjectsResponse) Kind() Kind       { return KindGetMapObjects }
func (EncounterResponse) Kind() Kind           { return KindEncounter }
func (CatchResponse) Kind() Kind               { return KindCatch }
func (UseItemCaptureResponse) Kind() Kind      { return KindUseItemCapture }
func (FortSearchResponse) Kind() Kind          { return KindFortSearch }
func (RecycleItemResponse) Kind() Kind         { return KindRecycleItem }
func (ReleaseResponse) Kind() Kind             { return KindRelease }
func (EvolveResponse) Kind() Kind              { return KindEvolve }
func (NicknameResponse) Kind() Kind            { return KindNickname }
func (UseItemEggIncubatorResponse) Kind() Kind { return KindUseItemEggIncubator }

// ----- Pacing -----

// Paced wraps a Gateway and enforces a minimum interval between submits to
// respect the remote service's rate limits. It never retries.
type Paced struct {
	inner    Gateway
	interval time.Duration

	mu    sync.Mutex
	last  time.Time
	sleep func(time.Duration)
}

// NewPaced wraps gw with a minimum inter-call delay.
func NewPaced(gw Gateway, interval time.Duration) *Paced {
	return &Paced{inner: gw, interval: interval, sleep: time.Sleep}
}

// Submit delays until the pacing interval has elapsed, then forwards. The
// caller's slot is reserved under the lock and slept off outside it, so a
// concurrent submit queues behind the reservation, not the sleep.
func (p *Paced) Submit(ctx context.Context, b *Batch) (*Envelope, error) {
	p.mu.Lock()
	now := time.Now()
	slot := p.last.Add(p.interval)
	if slot.Before(now) {
		slot = now
	}
	p.last = slot
	p.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		p.sleep(wait)
	}
	return p.inner.Submit(ctx, b)
}

// Login forwards to the wrapped transport when it authenticates.
func (p *Paced) Login(ctx context.Context, provider, username, password, token string) (string, error) {
	auth, ok := p.inner.(Authenticator)
	if !ok {
		return "", errors.New("gateway: transport does not authenticate")
	}
	return auth.Login(ctx, provider, username, password, token)
}
