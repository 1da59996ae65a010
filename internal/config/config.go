package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the API and the migrate tool.
type Config struct {
	Env           string
	HTTPAddr      string
	GRPCAddr      string
	PGDSN         string
	AuthSecret    string
	CardSecret    string
	AuthIssuer    string
	TokenTTL      time.Duration
	AdminEmails   []string
	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string
	KafkaTopic    string
	InterbankFee  string
	CurrencyLabel string
	RatePerSec    float64
	RateBurst     int
	CORSOrigins   []string
	Version       string
	Commit        string
}

// Lookup matches os.LookupEnv.
type Lookup func(key string) (string, bool)

// Load reads an optional .env file (or the given files) and then the process
// environment. Values already present in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds and validates a Config from lookup.
func FromEnv(lookup Lookup) (Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := Config{
		Env:           get("PITAKA_ENV", "development"),
		HTTPAddr:      get("PITAKA_HTTP_ADDR", ":8080"),
		GRPCAddr:      get("PITAKA_GRPC_ADDR", ""),
		PGDSN:         get("PITAKA_PG_DSN", ""),
		AuthSecret:    get("PITAKA_AUTH_SECRET", ""),
		CardSecret:    get("PITAKA_CARD_SECRET", ""),
		AuthIssuer:    get("PITAKA_AUTH_ISSUER", "pitaka"),
		AdminEmails:   splitList(get("PITAKA_ADMIN_EMAILS", "")),
		RedisAddr:     get("PITAKA_REDIS_ADDR", ""),
		RedisPassword: get("PITAKA_REDIS_PASSWORD", ""),
		KafkaBrokers:  splitList(get("PITAKA_KAFKA_BROKERS", "")),
		KafkaTopic:    get("PITAKA_KAFKA_TOPIC", "pitaka.money-movements"),
		InterbankFee:  get("PITAKA_INTERBANK_FEE", "flat"),
		CurrencyLabel: get("PITAKA_CURRENCY_LABEL", "PHP"),
		CORSOrigins:   splitList(get("PITAKA_CORS_ORIGINS", "*")),
		Version:       get("PITAKA_VERSION", "dev"),
		Commit:        get("PITAKA_COMMIT", "unknown"),
	}

	var errs []error
	ttl, err := time.ParseDuration(get("PITAKA_TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		errs = append(errs, fmt.Errorf("PITAKA_TOKEN_TTL: invalid duration %q", get("PITAKA_TOKEN_TTL", "")))
	}
	cfg.TokenTTL = ttl

	rate, err := strconv.ParseFloat(get("PITAKA_RATE_PER_SEC", "20"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, errors.New("PITAKA_RATE_PER_SEC: must be a positive number"))
	}
	cfg.RatePerSec = rate

	burst, err := strconv.Atoi(get("PITAKA_RATE_BURST", "40"))
	if err != nil || burst <= 0 {
		errs = append(errs, errors.New("PITAKA_RATE_BURST: must be a positive integer"))
	}
	cfg.RateBurst = burst

	if len(cfg.AuthSecret) < 16 {
		errs = append(errs, errors.New("PITAKA_AUTH_SECRET: required, at least 16 bytes"))
	}
	if cfg.CardSecret == "" {
		cfg.CardSecret = cfg.AuthSecret
	} else if len(cfg.CardSecret) < 16 {
		errs = append(errs, errors.New("PITAKA_CARD_SECRET: at least 16 bytes"))
	}
	switch cfg.InterbankFee {
	case "flat", "percent":
	default:
		errs = append(errs, fmt.Errorf("PITAKA_INTERBANK_FEE: unknown policy %q", cfg.InterbankFee))
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		errs = append(errs, errors.New("PITAKA_KAFKA_TOPIC: required when brokers are set"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsAdmin reports whether email is listed in PITAKA_ADMIN_EMAILS.
func (c Config) IsAdmin(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
