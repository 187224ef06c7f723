package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", false)

	log.Info().Msg("too quiet")
	log.Warn().Msg("loud enough")

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Errorf("info line should be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Errorf("warn line missing:\n%s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected JSON lines, got:\n%s", out)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty", false)

	if got := log.GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %s, want info", got)
	}
}

func TestNewConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", true)

	log.Info().Str("run_id", "abc").Msg("starting")

	out := buf.String()
	if !strings.Contains(out, "starting") {
		t.Errorf("message missing from console output:\n%s", out)
	}
	if strings.Contains(out, `"message"`) {
		t.Errorf("console output should not be JSON:\n%s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)
	got.Info().Msg("carried through")

	if !strings.Contains(buf.String(), "carried through") {
		t.Errorf("logger did not survive the context round trip:\n%s", buf.String())
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	log := FromContext(context.Background())
	if got := log.GetLevel(); got != zerolog.Disabled {
		t.Errorf("level = %s, want disabled", got)
	}
}
