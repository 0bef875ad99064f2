package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRIMOIRE_JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("Address = %q, want 0.0.0.0:8080", cfg.Server.Address())
	}
	if cfg.Auth.JWTAlgorithm != "HS256" {
		t.Errorf("JWTAlgorithm = %q, want HS256", cfg.Auth.JWTAlgorithm)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute || cfg.Auth.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("unexpected TTLs %v/%v", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.Auth.BcryptCost)
	}
	if cfg.Storage.Driver != DriverPostgres || !cfg.Storage.MigrateOnStart {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Reference.BaseURL != "https://www.dnd5eapi.co/api" || cfg.Reference.Timeout != 30*time.Second {
		t.Errorf("unexpected reference config %+v", cfg.Reference)
	}
	if cfg.MinIO.Enabled {
		t.Error("MinIO cache should be disabled by default")
	}
	if cfg.Bootstrap.Enabled() {
		t.Error("bootstrap should be disabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GRIMOIRE_JWT_SECRET", "s3cret")
	t.Setenv("GRIMOIRE_JWT_ALGORITHM", "hs512")
	t.Setenv("GRIMOIRE_API_PORT", "9090")
	t.Setenv("GRIMOIRE_AUTH_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("GRIMOIRE_AUTH_BCRYPT_COST", "99")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("DND5_BASE_URL", "http://localhost:3000/api/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.JWTAlgorithm != "HS512" {
		t.Errorf("JWTAlgorithm = %q, want HS512", cfg.Auth.JWTAlgorithm)
	}
	if cfg.Auth.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("out-of-range BcryptCost should fall back to 12, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Errorf("Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Reference.BaseURL != "http://localhost:3000/api" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", cfg.Reference.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"asymmetric algorithm", map[string]string{"GRIMOIRE_JWT_SECRET": "s", "GRIMOIRE_JWT_ALGORITHM": "RS256"}},
		{"unknown driver", map[string]string{"GRIMOIRE_JWT_SECRET": "s", "STORAGE_DRIVER": "sqlite"}},
		{"partial bootstrap", map[string]string{"GRIMOIRE_JWT_SECRET": "s", "GRIMOIRE_BOOTSTRAP_USERNAME": "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GRIMOIRE_JWT_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
