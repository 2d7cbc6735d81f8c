package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/salesbot/salesbot/internal/schema"
)

type LookupFunc func(string) (string, bool)

const (
	SinkPostgres = "postgres"
	SinkParquet  = "parquet"
)

type Config struct {
	Sink      string
	Count     int
	BatchSize int
	Seed      int64
	StartDate time.Time
	Days      int
	Dataset   string
	Truncate  bool
}

func DefaultConfig() Config {
	now := time.Now().UTC()
	return Config{
		Sink:      SinkPostgres,
		Count:     5000,
		BatchSize: 500,
		Seed:      now.UnixNano(),
		StartDate: truncateToDay(now.AddDate(-1, 0, 0)),
		Days:      365,
		Dataset:   schema.Table,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "SALESBOT_SEED_SINK", &cfg.Sink); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SALESBOT_SEED_COUNT", &cfg.Count); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SALESBOT_SEED_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "SALESBOT_SEED_RANDOM_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "SALESBOT_SEED_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SALESBOT_SEED_DAYS", &cfg.Days); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SALESBOT_SEED_DATASET", &cfg.Dataset); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SALESBOT_SEED_TRUNCATE", &cfg.Truncate); err != nil {
		return Config{}, err
	}

	cfg.Sink = strings.ToLower(cfg.Sink)
	if cfg.Sink != SinkPostgres && cfg.Sink != SinkParquet {
		return Config{}, fmt.Errorf("SALESBOT_SEED_SINK must be %q or %q", SinkPostgres, SinkParquet)
	}
	if cfg.Count <= 0 {
		return Config{}, fmt.Errorf("SALESBOT_SEED_COUNT must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("SALESBOT_SEED_BATCH_SIZE must be > 0")
	}
	if cfg.Days <= 0 {
		return Config{}, fmt.Errorf("SALESBOT_SEED_DAYS must be > 0")
	}
	if cfg.Dataset == "" {
		return Config{}, fmt.Errorf("SALESBOT_SEED_DATASET is required")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
