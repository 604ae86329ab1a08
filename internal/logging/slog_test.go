package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}

	for _, tc := range tests {
		got, err := parseLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLevel(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLevel(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWriter_TextFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, FormatText, "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	log.Debug(ctx, "dbg")
	log.Info(ctx, "inf")
	log.Warn(ctx, "wrn", "username", "alice")
	log.Error(ctx, "err", "error", "db down")

	out := buf.String()
	for _, hidden := range []string{"msg=dbg", "msg=inf"} {
		if strings.Contains(out, hidden) {
			t.Fatalf("did not expect %q below warn level, got:\n%s", hidden, out)
		}
	}
	for _, want := range []string{"level=WARN", "msg=wrn", "username=alice", "level=ERROR", `error="db down"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestSlogLogger_WithTagsModule(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewWriter(&buf, FormatJSON, "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	authLog := base.With("module", "auth")
	authLog.Info(context.Background(), "user registered", "username", "alice")
	base.Info(context.Background(), "untagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d:\n%s", len(lines), buf.String())
	}

	var tagged, plain map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &tagged); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &plain); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	if tagged["module"] != "auth" || tagged["username"] != "alice" || tagged["msg"] != "user registered" {
		t.Fatalf("unexpected tagged record: %v", tagged)
	}
	if _, ok := plain["module"]; ok {
		t.Fatalf("With must not modify the parent logger: %v", plain)
	}
}
