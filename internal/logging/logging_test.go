package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "eventpulse.log")

	logger := NewLogger(Config{Level: "debug", Output: path})
	logger.Debug().Str("series", "registrations").Msg("refreshed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"series":"registrations"`) {
		t.Fatalf("unexpected log line: %s", data)
	}
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
}

func TestNewLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	logger := NewLogger(Config{Level: "loud"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
}
