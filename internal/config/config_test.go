package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.Store != "mem" {
		t.Fatalf("unexpected store %q", cfg.Store)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if !cfg.SeedDemo {
		t.Fatal("expected seed_demo default true")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RENTCHAIN_ADDR", ":9999")
	t.Setenv("RENTCHAIN_STORE", "pg")
	t.Setenv("RENTCHAIN_PG_DSN", "postgres://localhost/rentchain")
	t.Setenv("RENTCHAIN_RATE_RPS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Store != "pg" || cfg.RateRPS != 5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("RENTCHAIN_STORE", "redis")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestLoadRequiresDSNForPG(t *testing.T) {
	t.Setenv("RENTCHAIN_STORE", "pg")
	t.Setenv("RENTCHAIN_PG_DSN", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when pg store has no DSN")
	}
}
