package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json":  FormatJSON,
		"JSON":  FormatJSON,
		"text":  FormatText,
		"tint":  FormatText,
		"human": FormatText,
		"":      FormatAuto,
		"xml":   FormatAuto,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		fallback slog.Level
		want     slog.Level
	}{
		{"debug", slog.LevelInfo, slog.LevelDebug},
		{"WARN", slog.LevelInfo, slog.LevelWarn},
		{"error", slog.LevelInfo, slog.LevelError},
		{"", slog.LevelDebug, slog.LevelDebug},
		{"loud", slog.LevelWarn, slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in, tt.fallback); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsTTY(t *testing.T) {
	if IsTTY(&bytes.Buffer{}) {
		t.Error("IsTTY(buffer) = true")
	}
}

func TestSetupFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "popup.log")
	closer, err := Setup(Options{Format: FormatJSON, Level: "warn", File: path})
	if err != nil {
		t.Fatal(err)
	}
	slog.Info("dropped")
	slog.Warn("kept", "n", 1)
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("log has %d lines, want 1:\n%s", len(lines), raw)
	}
	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "kept" || rec["level"] != "WARN" {
		t.Errorf("record = %v", rec)
	}
	fi, _ := os.Stat(path)
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("log file mode = %o, want 600", fi.Mode().Perm())
	}
}

func TestSetupBadFile(t *testing.T) {
	if _, err := Setup(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")}); err == nil {
		t.Error("Setup with an unwritable path succeeded")
	}
}
