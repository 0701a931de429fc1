package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEmitsJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "info", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info().Msg("ready")
	out := buf.String()
	if !strings.Contains(out, `"service":"outlook-mcp"`) || !strings.Contains(out, `"message":"ready"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNewLevelHandling(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", "warn", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", log.GetLevel())
	}
	log.Info().Msg("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info should be suppressed at warn level")
	}

	if _, err := New("production", "not-a-level", &buf); err == nil {
		t.Fatalf("expected error for bogus level")
	}
}
