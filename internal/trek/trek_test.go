package trek

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/talgya/pokebot/internal/capture"
	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/geo"
	"github.com/talgya/pokebot/internal/pokedex"
	"github.com/talgya/pokebot/internal/session"
	"github.com/talgya/pokebot/internal/triage"
)

// worldGateway serves a tiny static world and records traffic.
type worldGateway struct {
	stops        []gateway.Fort
	wild         []gateway.WildCreature
	roster       []gateway.CreatureData // served with every inventory refresh
	maxCreatures int                    // creature storage cap, 0 means 250

	bagFullSpins int     // number of leading fort searches refused for a full bag
	submitErrs   []error // errors returned for the next submits, in order

	scans      int
	spins      []string
	incubated  []gateway.UseItemEggIncubatorRequest
	catchCount int
	recycles   int
}

func (g *worldGateway) Submit(_ context.Context, b *gateway.Batch) (*gateway.Envelope, error) {
	if len(g.submitErrs) > 0 {
		err := g.submitErrs[0]
		g.submitErrs = g.submitErrs[1:]
		return nil, err
	}
	env := &gateway.Envelope{}
	for _, req := range b.Requests {
		switch r := req.(type) {
		case gateway.GetPlayerRequest:
			limit := g.maxCreatures
			if limit == 0 {
				limit = 250
			}
			env.Responses = append(env.Responses, &gateway.GetPlayerResponse{
				Success: true,
				Player:  gateway.PlayerData{Codename: "walker", MaxItemStorage: 350, MaxCreatureStorage: limit},
			})
		case gateway.GetInventoryRequest:
			entries := []gateway.InventoryEntry{
				{Stats: &gateway.PlayerStats{Level: 25, Experience: 1000}},
				{Item: &gateway.ItemCount{ID: gateway.ItemPokeBall, Count: 40}},
			}
			for i := range g.roster {
				entries = append(entries, gateway.InventoryEntry{Creature: &g.roster[i]})
			}
			env.Responses = append(env.Responses, &gateway.GetInventoryResponse{
				Success: true,
				Entries: entries,
			})
		case gateway.GetHatchedEggsRequest:
			env.Responses = append(env.Responses, &gateway.GetHatchedEggsResponse{Success: true})
		case gateway.GetMapObjectsRequest:
			g.scans++
			env.Responses = append(env.Responses, &gateway.GetMapObjectsResponse{
				Cells: []gateway.MapCell{{Forts: g.stops, Wild: g.wild}},
			})
		case gateway.FortSearchRequest:
			if g.bagFullSpins > 0 {
				g.bagFullSpins--
				env.Responses = append(env.Responses, &gateway.FortSearchResponse{
					Result: gateway.FortSearchInventoryFull,
				})
				continue
			}
			g.spins = append(g.spins, r.FortID)
			env.Responses = append(env.Responses, &gateway.FortSearchResponse{
				Result: gateway.FortSearchSuccess, ExperienceAwarded: 50,
			})
		case gateway.UseItemEggIncubatorRequest:
			g.incubated = append(g.incubated, r)
			env.Responses = append(env.Responses, &gateway.UseItemEggIncubatorResponse{
				Result: gateway.IncubatorSuccess,
				Incubator: &gateway.Incubator{
					ID: r.IncubatorID, ItemID: gateway.ItemIncubatorBasicUnlimited, EggID: r.EggID,
				},
			})
		case gateway.EncounterRequest:
			env.Responses = append(env.Responses, &gateway.EncounterResponse{
				Status: gateway.EncounterSuccess,
				Creature: &gateway.CreatureData{
					SpeciesID: 16, CP: 120, CPMultiplier: 0.5,
					IVAttack: 5, IVDefense: 5, IVStamina: 5,
				},
			})
		case gateway.CatchRequest:
			g.catchCount++
			env.Responses = append(env.Responses, &gateway.CatchResponse{Status: gateway.CatchSuccess})
		case gateway.RecycleItemRequest:
			g.recycles++
			env.Responses = append(env.Responses, &gateway.RecycleItemResponse{
				Result: gateway.RecycleSuccess, ItemID: r.ItemID, NewCount: 0,
			})
		}
	}
	return env, nil
}

func newTrek(gw gateway.Gateway) *Trek {
	s := session.New(pokedex.Demo())
	red := session.NewReducer(s)
	cfg := DefaultConfig()
	cfg.StepPause = 0
	t := New(gw, red, capture.DefaultPolicy(), triage.DefaultPolicy(), cfg)
	t.sleep = func(time.Duration) {}
	return t
}

func TestScanRequestsFullNeighborhood(t *testing.T) {
	gw := &worldGateway{}
	tr := newTrek(gw)

	if err := tr.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gw.scans != 1 {
		t.Fatalf("scans = %d, want 1", gw.scans)
	}
	s := tr.red.Session()
	if s.Profile.Codename != "walker" {
		t.Error("profile not folded in")
	}
	if s.ItemCount(gateway.ItemPokeBall) != 40 {
		t.Error("inventory not folded in")
	}
}

func TestCycleSpinsEveryStop(t *testing.T) {
	gw := &worldGateway{stops: []gateway.Fort{
		{ID: "a", Type: gateway.FortStop, Lat: 0.0001, Lng: 0},
		{ID: "b", Type: gateway.FortStop, Lat: 0.0001, Lng: 0.0001},
		{ID: "c", Type: gateway.FortStop, Lat: 0, Lng: 0.0001},
	}}
	tr := newTrek(gw)

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gw.spins) != 3 {
		t.Fatalf("spins = %v, want all 3 stops", gw.spins)
	}
	seen := map[string]bool{}
	for _, id := range gw.spins {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] || !seen["c"] {
		t.Errorf("spun stops = %v, want a, b, c", gw.spins)
	}
}

func TestCycleCapturesVisibleSpawns(t *testing.T) {
	gw := &worldGateway{
		stops: []gateway.Fort{{ID: "a", Type: gateway.FortStop, Lat: 0.0001}},
		wild:  []gateway.WildCreature{{EncounterID: 1, SpawnPointID: "s1", SpeciesID: 16}},
	}
	tr := newTrek(gw)

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gw.catchCount == 0 {
		t.Error("no capture attempted against a visible spawn")
	}
}

func TestSpinRecyclesOnFullBag(t *testing.T) {
	gw := &worldGateway{bagFullSpins: 1}
	tr := newTrek(gw)
	s := tr.red.Session()
	s.Profile.MaxItemStorage = 350
	s.SetItem(gateway.ItemPokeBall, 200)

	if err := tr.spin(context.Background(), gateway.Fort{ID: "a", Type: gateway.FortStop}); err != nil {
		t.Fatal(err)
	}
	if gw.recycles == 0 {
		t.Error("full bag did not trigger a recycle")
	}
	if len(gw.spins) != 1 {
		t.Errorf("successful spins = %d, want 1 retry after recycling", len(gw.spins))
	}
}

func TestAssignIncubators(t *testing.T) {
	gw := &worldGateway{}
	tr := newTrek(gw)
	s := tr.red.Session()

	long := &session.Creature{}
	long.ID = 101
	long.IsEgg = true
	long.EggKmTarget = 10
	short := &session.Creature{}
	short.ID = 102
	short.IsEgg = true
	short.EggKmTarget = 2

	s.PutEgg(long)
	s.PutEgg(short)
	s.PutIncubator(gateway.Incubator{ID: "inc-unlimited", ItemID: gateway.ItemIncubatorBasicUnlimited})
	s.PutIncubator(gateway.Incubator{ID: "inc-basic", ItemID: gateway.ItemIncubatorBasic})

	if err := tr.AssignIncubators(context.Background()); err != nil {
		t.Fatal(err)
	}

	byInc := map[string]uint64{}
	for _, req := range gw.incubated {
		byInc[req.IncubatorID] = req.EggID
	}
	if byInc["inc-unlimited"] == 0 {
		t.Error("unlimited incubator left empty")
	}
	if egg, ok := byInc["inc-basic"]; ok && egg == short.ID {
		t.Error("consumable incubator spent on a short-walk egg")
	}
}

func TestRouteSweepsStopsInLine(t *testing.T) {
	// Stops on a line east of the origin: the planned walk must sweep them
	// monotonically in one direction, never zig-zag.
	gw := &worldGateway{stops: []gateway.Fort{
		{ID: "far", Type: gateway.FortStop, Lat: 0, Lng: 0.0030},
		{ID: "near", Type: gateway.FortStop, Lat: 0, Lng: 0.0010},
		{ID: "mid", Type: gateway.FortStop, Lat: 0, Lng: 0.0020},
	}}
	tr := newTrek(gw)

	if err := tr.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(gw.spins) != 3 {
		t.Fatalf("spins = %v, want 3", gw.spins)
	}
	if gw.spins[1] != "mid" {
		t.Errorf("spin order = %v, want mid between near and far", gw.spins)
	}
}

func TestRunRetriesAfterTransientFailure(t *testing.T) {
	gw := &worldGateway{
		stops:      []gateway.Fort{{ID: "s1", Type: gateway.FortStop, Lat: 0, Lng: 0.0005}},
		submitErrs: []error{errors.New("transport: connection reset")},
	}
	tr := newTrek(gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.sleep = func(time.Duration) {
		// The first sleep is the retry pause; once a scan has landed the
		// loop survived the failure and the test can wind down.
		if gw.scans > 0 {
			cancel()
		}
	}

	err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if gw.scans == 0 {
		t.Error("loop died on a transient failure instead of retrying")
	}
}

func TestRunReauthenticatesOnExpiredSession(t *testing.T) {
	gw := &worldGateway{
		stops:      []gateway.Fort{{ID: "s1", Type: gateway.FortStop, Lat: 0, Lng: 0.0005}},
		submitErrs: []error{gateway.ErrNotLoggedIn},
	}
	tr := newTrek(gw)

	relogins := 0
	tr.OnSessionExpired(func(context.Context) error {
		relogins++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.sleep = func(time.Duration) {
		if gw.scans > 0 {
			cancel()
		}
	}

	err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if relogins != 1 {
		t.Errorf("relogins = %d, want 1", relogins)
	}
	if gw.scans == 0 {
		t.Error("loop did not resume after re-authenticating")
	}
}

func TestRunStopsWhenReloginFails(t *testing.T) {
	gw := &worldGateway{
		submitErrs: []error{gateway.ErrNotLoggedIn},
	}
	tr := newTrek(gw)

	authDown := errors.New("auth service down")
	tr.OnSessionExpired(func(context.Context) error { return authDown })

	err := tr.Run(context.Background())
	if !errors.Is(err, authDown) {
		t.Fatalf("Run = %v, want the re-login failure", err)
	}
}

func TestRunStorageExhaustionIsFatal(t *testing.T) {
	// A roster at capacity with nothing releasable makes the proactive
	// triage fail every cycle; the loop must stop rather than spin.
	gw := &worldGateway{
		maxCreatures: 1,
		roster: []gateway.CreatureData{
			{ID: 1, SpeciesID: 16, CP: 120, CPMultiplier: 0.5, IVAttack: 5, IVDefense: 5, IVStamina: 5},
		},
	}
	tr := newTrek(gw)

	err := tr.Run(context.Background())
	if !errors.Is(err, triage.ErrStorageExhausted) {
		t.Fatalf("Run = %v, want ErrStorageExhausted", err)
	}
}

func TestRouteMapURLListsStopsInOrder(t *testing.T) {
	stops := []gateway.Fort{
		{ID: "a", Lat: 1, Lng: 2},
		{ID: "b", Lat: 3, Lng: 4},
	}
	url := routeMapURL(geo.Coordinate{Lat: 0, Lng: 0}, stops, []int{1, 0})

	first := strings.Index(url, "3.000000,4.000000")
	second := strings.Index(url, "1.000000,2.000000")
	if first < 0 || second < 0 || first > second {
		t.Errorf("marker order wrong in %q", url)
	}
	if !strings.Contains(url, "markers=0.000000,0.000000,red-pushpin") {
		t.Errorf("start marker missing in %q", url)
	}
}
