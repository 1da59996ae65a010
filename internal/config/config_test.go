package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"PITAKA_AUTH_SECRET": "0123456789abcdef",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.InterbankFee != "flat" || cfg.CurrencyLabel != "PHP" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.RateBurst != 40 || cfg.RatePerSec != 20 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.PGDSN != "" || len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("optional backends should be off by default: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"PITAKA_AUTH_SECRET":   "0123456789abcdef",
		"PITAKA_KAFKA_BROKERS": "k1:9092, k2:9092,",
		"PITAKA_ADMIN_EMAILS":  "Ops@Pitaka.app",
		"PITAKA_INTERBANK_FEE": "percent",
		"PITAKA_TOKEN_TTL":     "30m",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.IsAdmin("ops@pitaka.app") || cfg.IsAdmin("ana@example.com") {
		t.Fatalf("admin matching is wrong: %v", cfg.AdminEmails)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("ttl = %v", cfg.TokenTTL)
	}
}

func TestFromEnvCollectsErrors(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{
		"PITAKA_INTERBANK_FEE": "tiered",
		"PITAKA_RATE_BURST":    "-1",
	}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"PITAKA_AUTH_SECRET", "PITAKA_INTERBANK_FEE", "PITAKA_RATE_BURST"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("PITAKA_AUTH_SECRET=from-file-0123456789\nPITAKA_HTTP_ADDR=:9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PITAKA_HTTP_ADDR", ":7070")
	t.Setenv("PITAKA_AUTH_SECRET", "")
	os.Unsetenv("PITAKA_AUTH_SECRET")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AuthSecret != "from-file-0123456789" {
		t.Fatalf("secret = %q", cfg.AuthSecret)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("environment should win over file, got %q", cfg.HTTPAddr)
	}
}

func TestCardSecret(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{"PITAKA_AUTH_SECRET": "0123456789abcdef"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.CardSecret != cfg.AuthSecret {
		t.Fatalf("card secret should fall back to the auth secret, got %q", cfg.CardSecret)
	}

	cfg, err = FromEnv(lookupFrom(map[string]string{
		"PITAKA_AUTH_SECRET": "0123456789abcdef",
		"PITAKA_CARD_SECRET": "card-secret-fedcba9876",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.CardSecret != "card-secret-fedcba9876" {
		t.Fatalf("card secret = %q", cfg.CardSecret)
	}

	_, err = FromEnv(lookupFrom(map[string]string{
		"PITAKA_AUTH_SECRET": "0123456789abcdef",
		"PITAKA_CARD_SECRET": "short",
	}))
	if err == nil || !strings.Contains(err.Error(), "PITAKA_CARD_SECRET") {
		t.Fatalf("short card secret accepted: %v", err)
	}
}
