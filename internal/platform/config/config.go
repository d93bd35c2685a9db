package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. It is built once at
// startup and injected by reference; business logic never reads the
// environment directly.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	// JWTSigningKey signs access and refresh assertions. Required: the
	// token service refuses to construct without it.
	JWTSigningKey string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// RenewThreshold is the sliding-window cutoff: an access assertion
	// with less remaining lifetime than this gets silently renewed by
	// the authorization gate.
	RenewThreshold time.Duration

	BcryptCost int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("APIM_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("APIM_DATABASE_URL"),
		RedisURL:        os.Getenv("APIM_REDIS_URL"),
		JWTSigningKey:   os.Getenv("APIM_JWT_SIGNING_KEY"),
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
		RenewThreshold:  10 * time.Minute,
		BcryptCost:      0, // bcrypt.DefaultCost when zero
	}

	if cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("APIM_JWT_SIGNING_KEY is required")
	}

	var err error
	if cfg.AccessTokenTTL, err = envDuration("APIM_ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = envDuration("APIM_REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RenewThreshold, err = envDuration("APIM_RENEW_THRESHOLD", cfg.RenewThreshold); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("APIM_BCRYPT_COST"); raw != "" {
		cost, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APIM_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
