package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestProdLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "prod", slog.LevelInfo, "1.0.0")
	l.Debug("hidden")
	l.Info("hello", "index", 42)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not a single JSON record: %v: %q", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["app"] != "airvita" || rec["env"] != "prod" || rec["version"] != "1.0.0" {
		t.Fatalf("record = %v", rec)
	}
}

func TestDevLoggerIsText(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(&buf, "dev", slog.LevelInfo, "dev").Info("hello")
	if buf.Len() == 0 || buf.Bytes()[0] == '{' {
		t.Fatalf("expected tint text output, got %q", buf.String())
	}
}
