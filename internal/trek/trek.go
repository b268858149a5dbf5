// Package trek runs the play loop: scan the surroundings, tend eggs and
// storage, plan a walking order over the known stops, then walk it,
// spinning stops and capturing spawns along the way.
package trek

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pokebot/internal/capture"
	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/geo"
	"github.com/talgya/pokebot/internal/route"
	"github.com/talgya/pokebot/internal/session"
	"github.com/talgya/pokebot/internal/triage"
)

// basicIncubatorKm is the egg distance worth a consumable incubator use.
const basicIncubatorKm = 10

// Config holds the walk parameters.
type Config struct {
	ScanRadius  int           // cells walked out each side of the position cell
	Speed       float64       // walking speed in meters per second
	StepPause   time.Duration // dwell per path step
	RescanEvery time.Duration // scan cadence while walking
	RetryPause  time.Duration // hold-off after a failed cycle
}

// DefaultConfig mirrors the pace the loop has been tuned for.
func DefaultConfig() Config {
	return Config{
		ScanRadius:  10,
		Speed:       10,
		StepPause:   time.Second,
		RescanEvery: 30 * time.Second,
		RetryPause:  30 * time.Second,
	}
}

// Trek drives one account through repeated play cycles.
type Trek struct {
	gw     gateway.Gateway
	red    *session.Reducer
	engine *capture.Engine
	roster triage.Policy
	cfg    Config

	sleep    func(time.Duration)
	relogin  func(context.Context) error
	lastScan time.Time
	mapShown bool

	startXP      int64
	startCaught  int
	startVisits  int
	startedAt    time.Time
}

// New assembles a trek over an authenticated gateway. The capture engine's
// corrective triage is wired back into the same roster policy.
func New(gw gateway.Gateway, red *session.Reducer, capturePol capture.Policy, rosterPol triage.Policy, cfg Config) *Trek {
	t := &Trek{
		gw:     gw,
		red:    red,
		roster: rosterPol,
		cfg:    cfg,
		sleep:  time.Sleep,
	}
	t.engine = capture.New(gw, red, capturePol, func(ctx context.Context) error {
		return triage.ReleaseCreatures(ctx, gw, red, rosterPol)
	})
	return t
}

// Scan refreshes the profile, inventory, hatch rewards, and surrounding
// map content in one round trip.
func (t *Trek) Scan(ctx context.Context) error {
	s := t.red.Session()
	cells := geo.Neighborhood(s.Position, t.cfg.ScanRadius)
	ids := make([]uint64, len(cells))
	for i, c := range cells {
		ids[i] = uint64(c)
	}

	env, err := t.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
		gateway.GetPlayerRequest{},
		gateway.GetInventoryRequest{},
		gateway.GetHatchedEggsRequest{},
		gateway.GetMapObjectsRequest{
			CellIDs:         ids,
			SinceTimestamps: make([]int64, len(ids)),
			Lat:             s.Position.Lat,
			Lng:             s.Position.Lng,
		},
	))
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	t.red.Apply(env)
	t.lastScan = time.Now()

	slog.Debug("scanned",
		"stops", len(s.Stops()),
		"spawns", len(s.Wild()),
		"items", s.TotalItems(),
		"creatures", s.CreatureCount(),
	)
	return nil
}

// AssignIncubators pairs every empty incubator with a waiting egg. The
// unlimited incubator takes whatever is longest; consumable ones are only
// spent on long-walk eggs.
func (t *Trek) AssignIncubators(ctx context.Context) error {
	s := t.red.Session()

	assigned := make(map[uint64]bool)
	for _, inc := range s.Incubators() {
		if inc.EggID != 0 {
			assigned[inc.EggID] = true
		}
	}

	for _, inc := range s.Incubators() {
		if inc.EggID != 0 {
			continue
		}
		var egg *session.Creature
		for _, e := range s.Eggs() { // longest walk target first
			if assigned[e.ID] || e.EggIncubatorID != "" {
				continue
			}
			if inc.ItemID != gateway.ItemIncubatorBasicUnlimited && e.EggKmTarget < basicIncubatorKm {
				continue
			}
			egg = e
			break
		}
		if egg == nil {
			continue
		}

		env, err := t.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
			gateway.UseItemEggIncubatorRequest{IncubatorID: inc.ID, EggID: egg.ID},
		))
		if err != nil {
			return fmt.Errorf("incubate egg %d: %w", egg.ID, err)
		}
		sig := t.red.Apply(env)
		if sig.Incubator != nil && sig.Incubator.Result == gateway.IncubatorSuccess {
			assigned[egg.ID] = true
			slog.Info("egg incubating", "egg", egg.ID, "target_km", egg.EggKmTarget, "incubator", inc.ID)
		}
	}
	return nil
}

// Cycle runs one full pass: scan, tend eggs and storage, then walk the
// planned stop order. A storage-exhausted roster aborts the trek.
func (t *Trek) Cycle(ctx context.Context) error {
	if err := t.Scan(ctx); err != nil {
		return err
	}
	if t.startedAt.IsZero() {
		t.markStart()
	}

	if err := t.AssignIncubators(ctx); err != nil {
		return err
	}
	if err := triage.RecycleItems(ctx, t.gw, t.red); err != nil {
		return err
	}
	if err := triage.ReleaseCreatures(ctx, t.gw, t.red, t.roster); err != nil {
		return err
	}

	s := t.red.Session()
	stops := s.Stops()
	if len(stops) == 0 {
		slog.Warn("no stops in range, holding position")
		t.sleep(t.cfg.RescanEvery)
		return nil
	}

	order, total, err := t.planRoute(stops)
	if err != nil {
		return err
	}
	slog.Info("route planned", "stops", len(order), "meters", int(total))
	if !t.mapShown {
		fmt.Println("Route: " + routeMapURL(s.Position, stops, order))
		t.mapShown = true
	}

	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		stop := stops[idx]
		if err := t.walkTo(ctx, geo.Coordinate{Lat: stop.Lat, Lng: stop.Lng}); err != nil {
			return err
		}
		if err := t.spin(ctx, stop); err != nil {
			return err
		}
		if err := t.captureVisible(ctx); err != nil {
			return err
		}
	}

	t.report()
	return nil
}

// OnSessionExpired registers the re-authentication hook Run invokes when
// the transport reports the session is no longer valid.
func (t *Trek) OnSessionExpired(fn func(context.Context) error) { t.relogin = fn }

// Run cycles until the context ends or play cannot continue. A failed
// cycle pauses and retries; an expired session re-authenticates through
// the registered hook and resumes. Only context cancellation, storage
// exhaustion, and a failed re-login terminate the loop.
func (t *Trek) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := t.Cycle(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, triage.ErrStorageExhausted) {
			slog.Error("roster has no headroom left, stopping", "error", err)
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, gateway.ErrNotLoggedIn) {
			if t.relogin == nil {
				return err
			}
			slog.Warn("session expired, re-authenticating")
			if lerr := t.relogin(ctx); lerr != nil {
				return fmt.Errorf("re-login: %w", lerr)
			}
			continue
		}
		slog.Warn("cycle failed, retrying", "error", err, "pause", t.cfg.RetryPause)
		t.sleep(t.cfg.RetryPause)
	}
}

// planRoute orders the stops into a short closed walk from the current
// position. The position itself anchors the tour so the walk starts with
// the nearest leg.
func (t *Trek) planRoute(stops []gateway.Fort) ([]int, float64, error) {
	s := t.red.Session()
	points := make([]geo.Coordinate, 0, len(stops)+1)
	points = append(points, s.Position)
	for _, f := range stops {
		points = append(points, geo.Coordinate{Lat: f.Lat, Lng: f.Lng})
	}

	order, total, err := route.Solve(points)
	if err != nil {
		return nil, 0, fmt.Errorf("route over %d stops: %w", len(stops), err)
	}
	// Drop the anchor, shift the rest back to stop indices.
	out := make([]int, 0, len(stops))
	for _, idx := range order {
		if idx != 0 {
			out = append(out, idx-1)
		}
	}
	return out, total, nil
}

// routeMapURL renders the planned walk as a static map link, start marker
// first and then every stop in visiting order.
func routeMapURL(start geo.Coordinate, stops []gateway.Fort, order []int) string {
	var b strings.Builder
	b.WriteString("https://staticmap.openstreetmap.de/staticmap.php?size=640x640&zoom=15")
	fmt.Fprintf(&b, "&center=%.6f,%.6f", start.Lat, start.Lng)
	fmt.Fprintf(&b, "&markers=%.6f,%.6f,red-pushpin", start.Lat, start.Lng)
	for _, idx := range order {
		fmt.Fprintf(&b, "|%.6f,%.6f,blue-pushpin", stops[idx].Lat, stops[idx].Lng)
	}
	return b.String()
}

// walkTo advances the position step by step at walking pace, re-scanning
// on the configured cadence so fresh spawns surface mid-leg.
func (t *Trek) walkTo(ctx context.Context, dest geo.Coordinate) error {
	s := t.red.Session()
	for _, step := range geo.Path(s.Position, dest, t.cfg.Speed) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.MoveTo(step)
		t.sleep(t.cfg.StepPause)

		if time.Since(t.lastScan) >= t.cfg.RescanEvery {
			if err := t.Scan(ctx); err != nil {
				return err
			}
			if err := t.captureVisible(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// spin searches a stop. A full bag triggers an item triage and one retry.
func (t *Trek) spin(ctx context.Context, stop gateway.Fort) error {
	for attempt := 0; attempt < 2; attempt++ {
		s := t.red.Session()
		env, err := t.gw.Submit(ctx, gateway.NewBatch(s.Position.Lat, s.Position.Lng).Add(
			gateway.FortSearchRequest{
				FortID:    stop.ID,
				FortLat:   stop.Lat,
				FortLng:   stop.Lng,
				PlayerLat: s.Position.Lat,
				PlayerLng: s.Position.Lng,
			},
		))
		if err != nil {
			return fmt.Errorf("spin %s: %w", stop.ID, err)
		}
		sig := t.red.Apply(env)

		if sig.ItemStorageFull {
			slog.Info("bag full at stop, recycling", "stop", stop.ID)
			if err := triage.RecycleItems(ctx, t.gw, t.red); err != nil {
				return err
			}
			continue
		}
		if sig.FortSearch != nil && sig.FortSearch.Result == gateway.FortSearchSuccess {
			slog.Info("stop spun", "stop", stop.ID, "xp", sig.FortSearch.ExperienceAwarded)
		}
		return nil
	}
	return nil
}

// captureVisible attempts every spawn currently on the map. Running out of
// containers ends the round without failing the walk.
func (t *Trek) captureVisible(ctx context.Context) error {
	for _, spawn := range t.red.Session().Wild() {
		out, err := t.engine.Attempt(ctx, spawn)
		if errors.Is(err, capture.ErrNoBalls) {
			slog.Warn("skipping remaining spawns, no containers")
			return nil
		}
		if err != nil {
			return err
		}
		slog.Info("capture resolved", "species", spawn.SpeciesID, "outcome", out.String())
	}
	return nil
}

func (t *Trek) markStart() {
	stats := t.red.Session().Profile.PlayerStats
	t.startedAt = time.Now()
	t.startXP = stats.Experience
	t.startCaught = stats.CreaturesCaught
	t.startVisits = stats.StopVisits
}

// report logs the session's running efficiency.
func (t *Trek) report() {
	stats := t.red.Session().Profile.PlayerStats
	hours := time.Since(t.startedAt).Hours()
	if hours <= 0 {
		return
	}
	xp := stats.Experience - t.startXP
	slog.Info("trek progress",
		"xp", humanize.Comma(xp),
		"xp_per_hour", humanize.CommafWithDigits(float64(xp)/hours, 0),
		"captures", stats.CreaturesCaught-t.startCaught,
		"stop_visits", stats.StopVisits-t.startVisits,
		"km_walked", humanize.CommafWithDigits(stats.KmWalked, 2),
	)
}
