// Command pokebot runs the autonomous play loop: it logs in, resolves the
// starting location, then walks the surroundings spinning stops, capturing
// spawns, and tending storage until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/talgya/pokebot/internal/capture"
	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/gateway/sim"
	"github.com/talgya/pokebot/internal/geo"
	"github.com/talgya/pokebot/internal/geocode"
	"github.com/talgya/pokebot/internal/persistence"
	"github.com/talgya/pokebot/internal/pokedex"
	"github.com/talgya/pokebot/internal/session"
	"github.com/talgya/pokebot/internal/trek"
	"github.com/talgya/pokebot/internal/triage"
)

const callInterval = 200 * time.Millisecond

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("pokebot stopped", "error", err)
		os.Exit(1)
	}
	fmt.Println("Pokebot stopped.")
}

func run(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.Username)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		cfg.Password = string(raw)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	dex, err := openPokedex(cfg.DataDir)
	if err != nil {
		return err
	}

	start, err := resolveLocation(ctx, cfg.Location)
	if err != nil {
		return err
	}
	fmt.Printf("Starting at https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=16/%.6f/%.6f\n",
		start.Lat, start.Lng, start.Lat, start.Lng)

	world := sim.New(cfg.Seed)
	gw := gateway.NewPaced(world, callInterval)

	token, err := login(ctx, gw, db, cfg)
	if err != nil {
		return err
	}
	slog.Info("logged in", "service", cfg.AuthService, "token", token[:min(12, len(token))]+"...")

	s := session.New(dex)
	s.Position = start
	red := session.NewReducer(s)

	t := trek.New(gw, red, capture.DefaultPolicy(), triage.DefaultPolicy(), trek.DefaultConfig())
	t.OnSessionExpired(func(ctx context.Context) error {
		if err := db.ClearToken(cfg.AuthService, cfg.Username); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		_, err := login(ctx, gw, db, cfg)
		return err
	})

	err = t.Run(ctx)

	if snapErr := db.SaveSnapshot(s); snapErr != nil {
		slog.Error("final snapshot failed", "error", snapErr)
	}
	if jErr := db.Journal("shutdown", fmt.Sprintf("level %d, %d creatures", s.Profile.Level, s.CreatureCount())); jErr != nil {
		slog.Warn("journal write failed", "error", jErr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openPokedex loads the reference tables from disk, or falls back to the
// built-in demo tables when no data directory is configured.
func openPokedex(dataDir string) (*pokedex.Pokedex, error) {
	if dataDir == "" {
		slog.Info("no data directory configured, using built-in reference tables")
		return pokedex.Demo(), nil
	}
	dex, err := pokedex.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	return dex, nil
}

// resolveLocation accepts either a "lat,lng" pair or a place name. Names
// go through the geocoder with backoff, since the free endpoint sheds
// load liberally.
func resolveLocation(ctx context.Context, location string) (geo.Coordinate, error) {
	if c, ok := parseLatLng(location); ok {
		return c, nil
	}

	client := geocode.NewClient("pokebot/1.0")
	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		place, err := client.Lookup(ctx, location)
		if err == nil {
			slog.Info("location resolved", "query", location, "name", place.DisplayName)
			return place.Coordinate, nil
		}
		if errors.Is(err, geocode.ErrNotFound) || ctx.Err() != nil {
			return geo.Coordinate{}, err
		}
		lastErr = err
		slog.Warn("geocoding failed, retrying", "error", err, "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
	}
	return geo.Coordinate{}, fmt.Errorf("geocode %q: %w", location, lastErr)
}

func parseLatLng(s string) (geo.Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	return c, c.Valid()
}

// login authenticates against the transport, reusing a stored token when
// one exists and discarding it when the server rejects it.
func login(ctx context.Context, gw *gateway.Paced, db *persistence.DB, cfg Config) (string, error) {
	stored, err := db.Token(cfg.AuthService, cfg.Username)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}

	token, err := gw.Login(ctx, cfg.AuthService, cfg.Username, cfg.Password, stored)
	if errors.Is(err, gateway.ErrNotLoggedIn) && stored != "" {
		slog.Warn("stored token rejected, re-authenticating")
		if clearErr := db.ClearToken(cfg.AuthService, cfg.Username); clearErr != nil {
			return "", fmt.Errorf("clear token: %w", clearErr)
		}
		token, err = gw.Login(ctx, cfg.AuthService, cfg.Username, cfg.Password, "")
	}
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if err := db.SaveToken(cfg.AuthService, cfg.Username, token); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return token, nil
}
