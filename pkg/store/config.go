package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
)

// Queue configuration keys persisted in the config table. Every enqueue and
// every retry reads the current values; there is no in-memory cache.
const (
	ConfigBackoffBase     = "backoff_base"
	ConfigDefaultPriority = "default_priority"
	ConfigDefaultTimeout  = "default_timeout"
	ConfigMaxRetries      = "max_retries"
)

// QueueConfig is the typed view of the persisted queue options.
type QueueConfig struct {
	BackoffBase     int `json:"backoff_base" validate:"gte=2"`
	DefaultPriority int `json:"default_priority"`
	DefaultTimeout  int `json:"default_timeout" validate:"gte=1"`
	MaxRetries      int `json:"max_retries" validate:"gte=0"`
}

// QueueConfig reads the current persisted queue configuration.
func (s *Store) QueueConfig(ctx context.Context) (QueueConfig, error) {
	raw, err := s.ConfigMap(ctx)
	if err != nil {
		return QueueConfig{}, err
	}

	cfg := QueueConfig{}
	for key, dst := range map[string]*int{
		ConfigBackoffBase:     &cfg.BackoffBase,
		ConfigDefaultPriority: &cfg.DefaultPriority,
		ConfigDefaultTimeout:  &cfg.DefaultTimeout,
		ConfigMaxRetries:      &cfg.MaxRetries,
	} {
		v, ok := raw[key]
		if !ok {
			return QueueConfig{}, NewInvalidInputError(key, "missing from config table")
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return QueueConfig{}, NewInvalidInputError(key, fmt.Sprintf("not an integer: %q", v))
		}
		*dst = n
	}

	return cfg, nil
}

// SetConfig validates and persists one queue option. The value is checked
// both for type and for range, against the config as it would be after the
// write; concurrent writers are serialized by the database.
func (s *Store) SetConfig(ctx context.Context, key, value string, now time.Time) error {
	cfg, err := s.QueueConfig(ctx)
	if err != nil {
		return err
	}

	n, err := cast.ToIntE(value)
	if err != nil {
		return NewInvalidInputError(key, fmt.Sprintf("not an integer: %q", value))
	}

	switch key {
	case ConfigBackoffBase:
		cfg.BackoffBase = n
	case ConfigDefaultPriority:
		cfg.DefaultPriority = n
	case ConfigDefaultTimeout:
		cfg.DefaultTimeout = n
	case ConfigMaxRetries:
		cfg.MaxRetries = n
	default:
		return NewInvalidInputError(key, "unknown config key")
	}

	if err := s.validate.Struct(cfg); err != nil {
		return NewInvalidInputError(key, fmt.Sprintf("value %d out of range", n))
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO config(key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, value, ts(now))
		if err != nil {
			return fmt.Errorf("set config: %w", err)
		}
		return nil
	})
}

// ConfigMap returns all persisted config entries.
func (s *Store) ConfigMap(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			out[k] = v
		}
		return rows.Err()
	})
	return out, err
}

// ConfigKeys returns the persisted config keys in sorted order, for display.
func ConfigKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
