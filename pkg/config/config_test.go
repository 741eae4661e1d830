package config

import (
	"strings"
	"testing"
)

func TestEnsureDSNPassthrough(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://u:p@localhost:5432/veloshop"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSN != "postgres://u:p@localhost:5432/veloshop" {
		t.Fatalf("DSN should be untouched, got %q", cfg.DSN)
	}
}

func TestEnsureDSNFromLegacyParts(t *testing.T) {
	cfg := DBConfig{
		LegacyHost:     "db.internal",
		LegacyPort:     5433,
		LegacyUser:     "veloshop",
		LegacyPassword: "s3cret",
		LegacyName:     "orders",
		LegacySSLMode:  "require",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"postgres://", "veloshop:s3cret@", "db.internal:5433", "/orders", "sslmode=require"} {
		if !strings.Contains(cfg.DSN, want) {
			t.Fatalf("DSN %q missing %q", cfg.DSN, want)
		}
	}
}

func TestEnsureDSNMissingParts(t *testing.T) {
	cfg := DBConfig{LegacyHost: "db.internal"}
	err := cfg.ensureDSN()
	if err == nil {
		t.Fatalf("expected error for missing legacy values")
	}
	if !strings.Contains(err.Error(), EnvDBUser) || !strings.Contains(err.Error(), EnvDBName) {
		t.Fatalf("error should name missing vars, got %v", err)
	}
}
