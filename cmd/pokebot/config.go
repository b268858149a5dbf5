package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Config holds the bot's settings, merged from config.json and flags.
// Flags win over the file.
type Config struct {
	AuthService string `json:"auth_service"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Location    string `json:"location"`
	Debug       bool   `json:"debug"`
	DBPath      string `json:"db_path"`
	DataDir     string `json:"data_dir"`
	Seed        int64  `json:"seed"`
}

func defaultConfig() Config {
	return Config{
		AuthService: "google",
		DBPath:      "data/pokebot.db",
		Seed:        42,
	}
}

// loadConfig reads the config file if present, then applies flag
// overrides.
func loadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("pokebot", flag.ContinueOnError)
	configPath := fs.String("c", "config.json", "path to config file")
	auth := fs.String("a", "", "auth service (google or ptc)")
	username := fs.String("u", "", "account username")
	password := fs.String("p", "", "account password (prompted when omitted)")
	location := fs.String("l", "", "starting location name or \"lat,lng\"")
	debug := fs.Bool("d", false, "debug logging")
	dbPath := fs.String("db", "", "path to the bot database")
	dataDir := fs.String("data", "", "reference data directory (species and level tables)")
	seed := fs.Int64("seed", 0, "world seed for the offline transport")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()
	if raw, err := os.ReadFile(*configPath); err == nil {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", *configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", *configPath, err)
	}

	if *auth != "" {
		cfg.AuthService = *auth
	}
	if *username != "" {
		cfg.Username = *username
	}
	if *password != "" {
		cfg.Password = *password
	}
	if *location != "" {
		cfg.Location = *location
	}
	if *debug {
		cfg.Debug = true
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	if cfg.AuthService != "google" && cfg.AuthService != "ptc" {
		return Config{}, fmt.Errorf("auth service %q not supported", cfg.AuthService)
	}
	if cfg.Username == "" {
		return Config{}, fmt.Errorf("username is required (-u or config file)")
	}
	if cfg.Location == "" {
		return Config{}, fmt.Errorf("location is required (-l or config file)")
	}
	return cfg, nil
}
