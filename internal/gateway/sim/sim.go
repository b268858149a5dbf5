// Package sim is an offline gateway: a deterministic little world derived
// from seeded noise fields, with server-side truth for the profile, bag,
// and roster. It serves the same request kinds as the live transport, so
// the whole play loop runs against it unchanged.
package sim

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/pokedex"
)

const (
	gridStep      = 0.001  // degrees between candidate world points, ~111 m
	scanReach     = 8      // grid steps served around the batch position
	stopThreshold = 0.72   // stop field value above which a stop exists
	spawnThresh   = 0.78   // spawn field value above which a spawn exists
	noiseScale    = 0.35   // field frequency over grid indices

	maxItemStorage     = 350
	maxCreatureStorage = 250
)

// Server simulates the game service. Safe for use behind the paced
// gateway wrapper; all state is guarded by one mutex.
type Server struct {
	dex *pokedex.Pokedex

	stopField  opensimplex.Noise
	spawnField opensimplex.Noise
	seed       int64

	mu        sync.Mutex
	loggedIn  bool
	codename  string
	level     int
	xp        int64
	caught    int
	visits    int
	items     map[gateway.ItemID]int
	creatures map[uint64]gateway.CreatureData
	candy     map[int]int
	nextID    uint64
	throws    map[uint64]int // per-encounter throw counter, drives outcomes
	spun      map[string]bool
	incubated map[string]gateway.Incubator
}

// New creates a simulated world from a seed. Equal seeds produce equal
// worlds.
func New(seed int64) *Server {
	s := &Server{
		dex:        pokedex.Demo(),
		stopField:  opensimplex.NewNormalized(seed),
		spawnField: opensimplex.NewNormalized(seed + 1),
		seed:       seed,
		level:      5,
		xp:         10000,
		items:      map[gateway.ItemID]int{gateway.ItemPokeBall: 50, gateway.ItemRazzBerry: 10},
		creatures:  make(map[uint64]gateway.CreatureData),
		candy:      make(map[int]int),
		nextID:     1000,
		throws:     make(map[uint64]int),
		spun:       make(map[string]bool),
		incubated: map[string]gateway.Incubator{
			"sim-incubator-0": {ID: "sim-incubator-0", ItemID: gateway.ItemIncubatorBasicUnlimited},
		},
	}
	return s
}

// Login accepts any credentials and issues a session token.
func (s *Server) Login(_ context.Context, provider, username, password, token string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("sim: username required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = true
	s.codename = username
	return fmt.Sprintf("sim-token-%s-%s", provider, username), nil
}

// Submit serves one request batch against the simulated world.
func (s *Server) Submit(_ context.Context, b *gateway.Batch) (*gateway.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedIn {
		return nil, gateway.ErrNotLoggedIn
	}

	env := &gateway.Envelope{}
	for _, req := range b.Requests {
		env.Responses = append(env.Responses, s.serve(req, b.Lat, b.Lng))
	}
	return env, nil
}

func (s *Server) serve(req gateway.Request, lat, lng float64) gateway.Response {
	switch r := req.(type) {
	case gateway.GetPlayerRequest:
		return &gateway.GetPlayerResponse{
			Success: true,
			Player: gateway.PlayerData{
				Codename:           s.codename,
				MaxItemStorage:     maxItemStorage,
				MaxCreatureStorage: maxCreatureStorage,
			},
		}
	case gateway.GetInventoryRequest:
		return s.serveInventory()
	case gateway.GetHatchedEggsRequest:
		return &gateway.GetHatchedEggsResponse{Success: true}
	case gateway.GetMapObjectsRequest:
		return s.serveMapObjects(lat, lng)
	case gateway.EncounterRequest:
		return s.serveEncounter(r)
	case gateway.CatchRequest:
		return s.serveCatch(r)
	case gateway.UseItemCaptureRequest:
		return s.serveUseItemCapture(r)
	case gateway.FortSearchRequest:
		return s.serveFortSearch(r)
	case gateway.RecycleItemRequest:
		return s.serveRecycle(r)
	case gateway.ReleaseRequest:
		return s.serveRelease(r)
	case gateway.EvolveRequest:
		return s.serveEvolve(r)
	case gateway.NicknameRequest:
		return &gateway.NicknameResponse{Success: true}
	case gateway.UseItemEggIncubatorRequest:
		return s.serveIncubate(r)
	}
	return nil
}

func (s *Server) serveInventory() gateway.Response {
	entries := []gateway.InventoryEntry{
		{Stats: &gateway.PlayerStats{
			Level:           s.level,
			Experience:      s.xp,
			CreaturesCaught: s.caught,
			StopVisits:      s.visits,
		}},
	}
	for id, count := range s.items {
		ic := gateway.ItemCount{ID: id, Count: count}
		entries = append(entries, gateway.InventoryEntry{Item: &ic})
	}
	for _, c := range s.creatures {
		data := c
		entries = append(entries, gateway.InventoryEntry{Creature: &data})
	}
	for family, n := range s.candy {
		entries = append(entries, gateway.InventoryEntry{Candy: &gateway.FamilyCandy{FamilyID: family, Candy: n}})
	}
	incs := make([]gateway.Incubator, 0, len(s.incubated))
	for _, inc := range s.incubated {
		incs = append(incs, inc)
	}
	entries = append(entries, gateway.InventoryEntry{Incubators: incs})

	return &gateway.GetInventoryResponse{Success: true, Entries: entries}
}

// serveMapObjects samples the noise fields on a grid around the caller.
// The same position always yields the same stops and spawns.
func (s *Server) serveMapObjects(lat, lng float64) gateway.Response {
	cell := gateway.MapCell{}

	baseX := int(math.Floor(lat / gridStep))
	baseY := int(math.Floor(lng / gridStep))
	for dx := -scanReach; dx <= scanReach; dx++ {
		for dy := -scanReach; dy <= scanReach; dy++ {
			ix, iy := baseX+dx, baseY+dy
			px := float64(ix) * gridStep
			py := float64(iy) * gridStep

			if s.stopField.Eval2(float64(ix)*noiseScale, float64(iy)*noiseScale) > stopThreshold {
				cell.Forts = append(cell.Forts, gateway.Fort{
					ID:   fmt.Sprintf("sim-stop-%d-%d", ix, iy),
					Lat:  px,
					Lng:  py,
					Type: gateway.FortStop,
				})
			}

			if v := s.spawnField.Eval2(float64(ix)*noiseScale, float64(iy)*noiseScale); v > spawnThresh {
				species := s.pickSpecies(ix, iy)
				cell.Wild = append(cell.Wild, gateway.WildCreature{
					EncounterID:  pointHash(s.seed, ix, iy),
					SpawnPointID: fmt.Sprintf("sim-spawn-%d-%d", ix, iy),
					SpeciesID:    species,
					Lat:          px,
					Lng:          py,
				})
			}
		}
	}

	return &gateway.GetMapObjectsResponse{Cells: []gateway.MapCell{cell}}
}

func (s *Server) serveEncounter(r gateway.EncounterRequest) gateway.Response {
	if len(s.creatures) >= maxCreatureStorage {
		return &gateway.EncounterResponse{Status: gateway.EncounterInventoryFull}
	}
	return &gateway.EncounterResponse{
		Status:             gateway.EncounterSuccess,
		Creature:           s.wildCreature(r.EncounterID),
		CaptureProbability: []float64{0.3, 0.5, 0.7},
	}
}

func (s *Server) serveCatch(r gateway.CatchRequest) gateway.Response {
	if s.items[r.Ball] <= 0 {
		return &gateway.CatchResponse{Status: gateway.CatchMissed}
	}
	s.items[r.Ball]--
	s.throws[r.EncounterID]++

	// Outcomes cycle deterministically per encounter: better containers
	// land sooner.
	turn := uint64(s.throws[r.EncounterID])
	roll := (r.EncounterID + turn*2654435761) % 10
	threshold := uint64(4)
	switch r.Ball {
	case gateway.ItemGreatBall:
		threshold = 6
	case gateway.ItemUltraBall:
		threshold = 8
	case gateway.ItemMasterBall:
		threshold = 10
	}

	if roll < threshold {
		data := *s.wildCreature(r.EncounterID)
		data.ID = s.nextID
		s.nextID++
		s.creatures[data.ID] = data
		s.candy[s.dex.FamilyOf(data.SpeciesID)] += 3
		s.caught++
		s.xp += 100
		delete(s.throws, r.EncounterID)
		return &gateway.CatchResponse{Status: gateway.CatchSuccess, XPAwards: []int{100}, CandyAwarded: 3}
	}
	if turn >= 4 {
		delete(s.throws, r.EncounterID)
		return &gateway.CatchResponse{Status: gateway.CatchFlee}
	}
	return &gateway.CatchResponse{Status: gateway.CatchEscape}
}

func (s *Server) serveUseItemCapture(r gateway.UseItemCaptureRequest) gateway.Response {
	if s.items[r.ItemID] <= 0 {
		return &gateway.UseItemCaptureResponse{Success: false}
	}
	s.items[r.ItemID]--
	return &gateway.UseItemCaptureResponse{Success: true, CaptureMultiplier: 1.5}
}

func (s *Server) serveFortSearch(r gateway.FortSearchRequest) gateway.Response {
	total := 0
	for _, n := range s.items {
		total += n
	}
	if total >= maxItemStorage {
		return &gateway.FortSearchResponse{Result: gateway.FortSearchInventoryFull}
	}
	if s.spun[r.FortID] {
		return &gateway.FortSearchResponse{Result: gateway.FortSearchCooldown}
	}
	s.spun[r.FortID] = true
	s.visits++
	s.xp += 50

	award := []gateway.ItemCount{
		{ID: gateway.ItemPokeBall, Count: 3},
		{ID: gateway.ItemRazzBerry, Count: 1},
	}
	for _, ic := range award {
		s.items[ic.ID] += ic.Count
	}
	return &gateway.FortSearchResponse{
		Result:            gateway.FortSearchSuccess,
		ExperienceAwarded: 50,
		Items:             award,
	}
}

func (s *Server) serveRecycle(r gateway.RecycleItemRequest) gateway.Response {
	if s.items[r.ItemID] < r.Count {
		return &gateway.RecycleItemResponse{Result: gateway.RecycleNotEnoughItems, ItemID: r.ItemID}
	}
	s.items[r.ItemID] -= r.Count
	return &gateway.RecycleItemResponse{
		Result:   gateway.RecycleSuccess,
		ItemID:   r.ItemID,
		NewCount: s.items[r.ItemID],
	}
}

func (s *Server) serveRelease(r gateway.ReleaseRequest) gateway.Response {
	c, ok := s.creatures[r.CreatureID]
	if !ok {
		return &gateway.ReleaseResponse{Result: gateway.ReleaseFailed}
	}
	delete(s.creatures, r.CreatureID)
	s.candy[s.dex.FamilyOf(c.SpeciesID)]++
	return &gateway.ReleaseResponse{Result: gateway.ReleaseSuccess, CandyAwarded: 1}
}

func (s *Server) serveEvolve(r gateway.EvolveRequest) gateway.Response {
	c, ok := s.creatures[r.CreatureID]
	if !ok {
		return &gateway.EvolveResponse{Result: gateway.EvolveFailedMissing}
	}
	sp, ok := s.dex.Species(c.SpeciesID)
	if !ok || sp.EvolvesTo == 0 {
		return &gateway.EvolveResponse{Result: gateway.EvolveFailedCannotEvolve}
	}
	family := s.dex.FamilyOf(c.SpeciesID)
	if s.candy[family] < sp.CandyToEvolve {
		return &gateway.EvolveResponse{Result: gateway.EvolveFailedInsufficient}
	}
	s.candy[family] -= sp.CandyToEvolve
	c.SpeciesID = sp.EvolvesTo
	s.creatures[r.CreatureID] = c
	s.xp += 500
	return &gateway.EvolveResponse{
		Result:            gateway.EvolveSuccess,
		Evolved:           &c,
		ExperienceAwarded: 500,
		CandyAwarded:      1,
	}
}

func (s *Server) serveIncubate(r gateway.UseItemEggIncubatorRequest) gateway.Response {
	inc, ok := s.incubated[r.IncubatorID]
	if !ok {
		return &gateway.UseItemEggIncubatorResponse{Result: gateway.IncubatorNotFound}
	}
	inc.EggID = r.EggID
	s.incubated[r.IncubatorID] = inc
	return &gateway.UseItemEggIncubatorResponse{Result: gateway.IncubatorSuccess, Incubator: &inc}
}

// wildCreature derives the specimen behind an encounter identity. The same
// encounter always yields the same creature.
func (s *Server) wildCreature(encounterID uint64) *gateway.CreatureData {
	h := encounterID * 2654435761
	species := s.speciesAt(int(h % uint64(len(s.dex.SpeciesIDs()))))
	return &gateway.CreatureData{
		SpeciesID:    species,
		CP:           int(100 + h%900),
		CPMultiplier: 0.4 + float64(h%30)/100,
		IVAttack:     int(h >> 8 % 16),
		IVDefense:    int(h >> 12 % 16),
		IVStamina:    int(h >> 16 % 16),
	}
}

func (s *Server) pickSpecies(ix, iy int) int {
	return s.speciesAt(int(pointHash(s.seed+2, ix, iy) % uint64(len(s.dex.SpeciesIDs()))))
}

func (s *Server) speciesAt(idx int) int {
	ids := s.dex.SpeciesIDs()
	return ids[idx%len(ids)]
}

// pointHash gives a stable identity to a grid point under a seed.
func pointHash(seed int64, ix, iy int) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d:%d", seed, ix, iy)
	return h.Sum64()
}
