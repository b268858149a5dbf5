// Command probe performs one scan and prints what the account and the
// surroundings look like, without playing. Useful for checking a location
// and credentials before committing to a trek.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pokebot/internal/capture"
	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/gateway/sim"
	"github.com/talgya/pokebot/internal/geo"
	"github.com/talgya/pokebot/internal/pokedex"
	"github.com/talgya/pokebot/internal/session"
	"github.com/talgya/pokebot/internal/trek"
	"github.com/talgya/pokebot/internal/triage"
)

func main() {
	username := flag.String("u", "probe", "account username")
	lat := flag.Float64("lat", 37.7749, "latitude")
	lng := flag.Float64("lng", -122.4194, "longitude")
	seed := flag.Int64("seed", 42, "world seed for the offline transport")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := run(*username, *lat, *lng, *seed); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(username string, lat, lng float64, seed int64) error {
	ctx := context.Background()

	world := sim.New(seed)
	gw := gateway.NewPaced(world, 100*time.Millisecond)
	if _, err := gw.Login(ctx, "sim", username, "", ""); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	dex := pokedex.Demo()
	s := session.New(dex)
	s.Position = geo.Coordinate{Lat: lat, Lng: lng}
	red := session.NewReducer(s)

	t := trek.New(gw, red, capture.DefaultPolicy(), triage.DefaultPolicy(), trek.DefaultConfig())
	if err := t.Scan(ctx); err != nil {
		return err
	}

	fmt.Printf("Account:   %s (level %d, %s XP)\n",
		s.Profile.Codename, s.Profile.Level, humanize.Comma(s.Profile.Experience))
	fmt.Printf("Bag:       %d items of %d\n", s.TotalItems(), s.Profile.MaxItemStorage)
	fmt.Printf("Roster:    %d creatures of %d\n", s.CreatureCount(), s.Profile.MaxCreatureStorage)
	fmt.Printf("Position:  %.6f, %.6f\n", lat, lng)

	stops := s.Stops()
	fmt.Printf("\nStops in range: %d\n", len(stops))
	for _, f := range stops {
		fmt.Printf("  %-24s %.0f m\n", f.ID, geo.Distance(s.Position, geo.Coordinate{Lat: f.Lat, Lng: f.Lng}))
	}

	wild := s.Wild()
	fmt.Printf("\nSpawns visible: %d\n", len(wild))
	for _, w := range wild {
		name := fmt.Sprintf("species %d", w.SpeciesID)
		if sp, ok := dex.Species(w.SpeciesID); ok {
			name = sp.Identifier
		}
		fmt.Printf("  %-16s %.0f m\n", name, geo.Distance(s.Position, geo.Coordinate{Lat: w.Lat, Lng: w.Lng}))
	}
	return nil
}
