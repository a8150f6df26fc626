package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogUsesGlyphForKnownSeverities(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug)

	log.Successf("deployed")
	log.Ignoredf("node_modules/")
	log.Warnf("retrying")
	log.Errorf("boom")
	log.Infof("starting")

	out := buf.String()
	for _, want := range []string{"✅", "🚫", "⚠️", "❌", "ℹ️"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain glyph %q, got: %s", want, out)
		}
	}
}

func TestLogFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn)

	log.Infof("should not appear")
	log.Ignoredf("should not appear either")
	log.Errorf("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected levels below LevelWarn to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected LevelError to pass the filter, got: %s", out)
	}
}
