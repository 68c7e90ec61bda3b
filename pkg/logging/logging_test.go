package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestConfigureGlobalLogging_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	old := getLogWriter()
	SetLogWriter(&buf)
	defer SetLogWriter(old)

	require.NoError(t, ConfigureGlobalLogging("info", "text"))

	log.Info().Str("job_id", "j1").Msg("enqueued")
	require.Contains(t, buf.String(), "enqueued")
}

func TestNewLogger_TagsComponent(t *testing.T) {
	require.NoError(t, ConfigureGlobalLogging("debug", "json"))

	logger := NewLogger("worker", zerolog.DebugLevel)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
