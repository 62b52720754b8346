package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.With(String("component", "assembler")).Info(context.Background(), "simulation assembled",
		Int("flights", 3),
		Float64("distance_m", 12.5),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "simulation assembled" {
		t.Fatalf("msg = %v", rec["msg"])
	}
	if rec["component"] != "assembler" || rec["flights"] != float64(3) || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestComponentAndDuration(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Component: "simulator", Output: &buf})
	l.Info(context.Background(), "tick", Duration("cost", 1500*time.Millisecond))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["component"] != "simulator" {
		t.Fatalf("component = %v, want simulator", rec["component"])
	}
	if rec["cost"] != float64(1500*time.Millisecond) {
		t.Fatalf("cost = %v, want %d", rec["cost"], 1500*time.Millisecond)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.log")
	l := New(Config{Format: "text", File: path})
	l.Info(context.Background(), "to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file content = %q", data)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	path := filepath.Join(t.TempDir(), "env.log")
	t.Setenv("LOG_FILE", path)

	l := NewFromEnv("simserver")
	l.Warn(context.Background(), "below threshold")
	l.Error(context.Background(), "kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "below threshold") || !strings.Contains(out, `"component":"simserver"`) {
		t.Fatalf("unexpected log file content %q", out)
	}
}

func TestRequestScope(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, l := Request(context.Background(), base, "", String("trace_id", "abc"))
	id := RequestID(ctx)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated request id %q is not a UUID: %v", id, err)
	}
	FromContext(ctx, nil).Info(ctx, "hello")
	l.Info(ctx, "again")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, id) || !strings.Contains(line, `"trace_id":"abc"`) {
			t.Fatalf("request log line %q lacks scope fields", line)
		}
	}

	ctx, _ = Request(context.Background(), nil, "given-id")
	if got := RequestID(ctx); got != "given-id" {
		t.Fatalf("RequestID = %q, want given-id", got)
	}
}

func TestFromContextFallback(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Fatalf("expected no request id on empty context")
	}
	base := New(Config{Output: &bytes.Buffer{}})
	if got := FromContext(context.Background(), base); got != base {
		t.Fatalf("FromContext should return the fallback")
	}
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Fatalf("nil fallback should yield Noop")
	}
}
