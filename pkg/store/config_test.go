package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConfig_Defaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.QueueConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BackoffBase)
	assert.Equal(t, 0, cfg.DefaultPriority)
	assert.Equal(t, 300, cfg.DefaultTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestSetConfig_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, ConfigMaxRetries, "5", t0))
	require.NoError(t, s.SetConfig(ctx, ConfigBackoffBase, "3", t0))
	require.NoError(t, s.SetConfig(ctx, ConfigDefaultPriority, "-2", t0))

	cfg, err := s.QueueConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.BackoffBase)
	assert.Equal(t, -2, cfg.DefaultPriority)
}

func TestSetConfig_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "poll_interval", "5"},
		{"non-integer", ConfigMaxRetries, "many"},
		{"backoff base below 2", ConfigBackoffBase, "1"},
		{"zero timeout", ConfigDefaultTimeout, "0"},
		{"negative retries", ConfigMaxRetries, "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetConfig(ctx, tt.key, tt.value, t0)
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err))
		})
	}

	// Nothing was persisted by the failed writes.
	cfg, err := s.QueueConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BackoffBase)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestConfigMap(t *testing.T) {
	s := newTestStore(t)

	m, err := s.ConfigMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		ConfigBackoffBase,
		ConfigDefaultPriority,
		ConfigDefaultTimeout,
		ConfigMaxRetries,
	}, ConfigKeys(m))
	assert.Equal(t, "2", m[ConfigBackoffBase])
}
