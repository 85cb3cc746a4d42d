package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_USER", "program")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBDriver != "mysql" {
		t.Fatalf("unexpected defaults: port=%q driver=%q", cfg.Port, cfg.DBDriver)
	}
	if cfg.LineupDefaultLimit != 50 || cfg.LineupMaxLimit != 200 {
		t.Fatalf("unexpected lineup limits: %d/%d", cfg.LineupDefaultLimit, cfg.LineupMaxLimit)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"DB_USER": "u"}, "JWT_SECRET"},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"mysql without user", map[string]string{"JWT_SECRET": "s"}, "DB_USER"},
		{"bad timezone", map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "sqlite", "PROGRAM_TIMEZONE": "Mars/Base"}, "PROGRAM_TIMEZONE"},
		{"limits inverted", map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "sqlite", "LINEUP_DEFAULT_LIMIT": "300"}, "lineup limits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("DB_USER", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadCacheConfigNormalisesMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg, err := LoadCacheConfig()
	if err != nil {
		t.Fatalf("LoadCacheConfig: %v", err)
	}
	if !cfg.Caches("GET") || !cfg.Caches("head") || cfg.Caches("POST") {
		t.Fatalf("unexpected methods: %v", cfg.Methods)
	}
}

func TestRateLimitNormalize(t *testing.T) {
	cfg := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.normalize()
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 || cfg.RefillInterval != time.Second {
		t.Fatalf("unexpected normalisation: %+v", cfg)
	}
	if cfg.TTL != 5*time.Second {
		t.Fatalf("expected TTL raised to 5s, got %s", cfg.TTL)
	}
}
