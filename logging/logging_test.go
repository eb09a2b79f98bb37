package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestSetup(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var console, file bytes.Buffer
	Setup("warn", &console, &file)

	log.Info().Msg("hidden")
	log.Warn().Str("session", "ab12").Msg("visible")

	for name, buf := range map[string]*bytes.Buffer{"console": &console, "file": &file} {
		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("%s: info line should be filtered at warn level: %s", name, out)
		}
		if !strings.Contains(out, "visible") || !strings.Contains(out, "session=") {
			t.Errorf("%s: expected warn line with fields, got: %s", name, out)
		}
	}

	if strings.Contains(file.String(), "\x1b[") {
		t.Error("Extra writers should not receive colour codes")
	}
}
