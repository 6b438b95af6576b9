package util

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		logger := NewLogger(tc.level, "")
		if !logger.Enabled(nil, tc.want) {
			t.Errorf("NewLogger(%q) does not log at %v", tc.level, tc.want)
		}
		if tc.want > slog.LevelDebug && logger.Enabled(nil, tc.want-4) {
			t.Errorf("NewLogger(%q) unexpectedly logs below %v", tc.level, tc.want)
		}
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "atd.log")
	logger := NewLogger("info", file)
	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty after writing a record")
	}
}
