// Package config loads server settings from the environment, with a .env
// file layered in for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/blchelle/capstone/internal/engine"
)

type Config struct {
	Addr        string
	DatabaseURL string
	Env         string // "development" | "production" | "test"

	MaxUsers               int
	PowerupChance          float64
	EffectDurations        map[engine.PowerupType]time.Duration
	TargetStrategy         engine.TargetStrategy
	EnforcePrivateCapacity bool
}

// Load reads the optional .env file then the environment. Missing keys
// fall back to defaults; a missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	defaults := engine.DefaultRules()
	return Config{
		Addr:          getString("ADDR", ":8080"),
		DatabaseURL:   getString("DATABASE_URL", ""),
		Env:           getString("APP_ENV", "development"),
		MaxUsers:      getInt("MAX_USERS", defaults.MaxUsers),
		PowerupChance: getFloat("POWERUP_CHANCE", defaults.PowerupChance),
		EffectDurations: map[engine.PowerupType]time.Duration{
			engine.PowerupKnockout:  getMillis("KNOCKOUT_MS", defaults.Durations[engine.PowerupKnockout]),
			engine.PowerupDoubletap: getMillis("DOUBLETAP_MS", defaults.Durations[engine.PowerupDoubletap]),
			engine.PowerupWhiteout:  getMillis("WHITEOUT_MS", defaults.Durations[engine.PowerupWhiteout]),
			engine.PowerupRumble:    getMillis("RUMBLE_MS", defaults.Durations[engine.PowerupRumble]),
		},
		TargetStrategy:         targetStrategy(getString("TARGET_STRATEGY", string(defaults.Strategy))),
		EnforcePrivateCapacity: getBool("ENFORCE_PRIVATE_CAPACITY", false),
	}
}

// Rules maps the loaded settings onto the engine's fixed-at-creation rules.
func (c Config) Rules() engine.Rules {
	return engine.Rules{
		MaxUsers:               c.MaxUsers,
		PowerupChance:          c.PowerupChance,
		Durations:              c.EffectDurations,
		Strategy:               c.TargetStrategy,
		EnforcePrivateCapacity: c.EnforcePrivateCapacity,
	}
}

func targetStrategy(s string) engine.TargetStrategy {
	if s == string(engine.TargetFirst) {
		return engine.TargetFirst
	}
	return engine.TargetWeakest
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getMillis(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
