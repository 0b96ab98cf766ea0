package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel zerolog.Level
	}{
		{name: "debug", level: "debug", expectedLevel: zerolog.DebugLevel},
		{name: "info", level: "info", expectedLevel: zerolog.InfoLevel},
		{name: "warn", level: "warn", expectedLevel: zerolog.WarnLevel},
		{name: "error", level: "error", expectedLevel: zerolog.ErrorLevel},
		{name: "unknown falls back to info", level: "loud", expectedLevel: zerolog.InfoLevel},
		{name: "empty falls back to info", level: "", expectedLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{Level: tt.level})

			assert.Equal(t, tt.expectedLevel, l.GetLevel())
			assert.Equal(t, tt.expectedLevel, zerolog.GlobalLevel())
		})
	}
}

func TestNew_WritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info"}).Output(&buf)

	l.Info().Str("scenario", "Hot SOP").Msg("sweep started")

	out := buf.String()
	assert.Contains(t, out, `"scenario":"Hot SOP"`)
	assert.Contains(t, out, "sweep started")
	assert.Contains(t, out, `"time":`)
}

func TestNew_LevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn"}).Output(&buf)

	l.Info().Msg("should be filtered")
	l.Warn().Msg("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}
