package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
		msg   string
		extra map[string]any
	}{
		{
			name:  "debug",
			log:   func(l *DispatcherLogger) { l.Debug("render queued", "command", ":RENDER:", "frame", 42) },
			level: "DEBUG",
			msg:   "render queued",
			extra: map[string]any{"command": ":RENDER:", "frame": float64(42)},
		},
		{
			name:  "info",
			log:   func(l *DispatcherLogger) { l.Info("handler registered", "command", ":TRAP:SET:") },
			level: "INFO",
			msg:   "handler registered",
			extra: map[string]any{"command": ":TRAP:SET:"},
		},
		{
			name:  "error",
			log:   func(l *DispatcherLogger) { l.Error("handler failed", "error", "bad args") },
			level: "ERROR",
			msg:   "handler failed",
			extra: map[string]any{"error": "bad args"},
		},
		{
			name:  "no key values",
			log:   func(l *DispatcherLogger) { l.Debug("simple message") },
			level: "DEBUG",
			msg:   "simple message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			tt.log(NewDispatcherLogger(logger))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["msg"])
			assert.Equal(t, "dispatcher", entry["component"])
			for k, v := range tt.extra {
				assert.Equal(t, v, entry[k], k)
			}
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	dl := NewDispatcherLogger(logger)

	dl.Debug("hidden")
	dl.Info("hidden")
	assert.Empty(t, buf.String())

	dl.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}
