package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func resetLogger() {
	Init(Options{})
}

// --- Level Tests ---

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		logged  []string
		dropped []string
	}{
		{
			name:    "default info",
			opts:    Options{},
			logged:  []string{"info-msg", "warn-msg", "error-msg"},
			dropped: []string{"debug-msg"},
		},
		{
			name:   "debug",
			opts:   Options{Debug: true},
			logged: []string{"debug-msg", "info-msg", "warn-msg", "error-msg"},
		},
		{
			name:    "quiet",
			opts:    Options{Quiet: true},
			logged:  []string{"error-msg"},
			dropped: []string{"debug-msg", "info-msg", "warn-msg"},
		},
		{
			name:    "quiet overrides debug",
			opts:    Options{Debug: true, Quiet: true},
			logged:  []string{"error-msg"},
			dropped: []string{"debug-msg", "info-msg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := tt.opts
			opts.Output = buf
			Init(opts)
			defer resetLogger()

			Debug("debug-msg")
			Info("info-msg")
			Warn("warn-msg")
			Error("error-msg")

			out := buf.String()
			for _, m := range tt.logged {
				if !strings.Contains(out, m) {
					t.Errorf("expected %q in output", m)
				}
			}
			for _, m := range tt.dropped {
				if strings.Contains(out, m) {
					t.Errorf("did not expect %q in output", m)
				}
			}
		})
	}
}

// --- Format Tests ---

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("STATE TRANSITION", "from", "INIT", "to", "DOCUMENT_INGEST")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "STATE TRANSITION" || rec["to"] != "DOCUMENT_INGEST" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestWith_Attrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	With("run", "r1").Info("with attrs", "count", 42)

	out := buf.String()
	for _, want := range []string{"with attrs", "run=r1", "count=42"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "debug ctx")
	InfoContext(ctx, "info ctx")
	WarnContext(ctx, "warn ctx")
	ErrorContext(ctx, "error ctx")

	for _, want := range []string{"debug ctx", "info ctx", "warn ctx", "error ctx"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

// --- Trace File Tests ---

func TestInit_TraceFileIgnoresQuiet(t *testing.T) {
	out := &bytes.Buffer{}
	trace := &bytes.Buffer{}
	Init(Options{Quiet: true, Output: out, TraceFile: trace})
	defer resetLogger()

	Info("STATE TRANSITION", "from", "VALIDATION", "to", "REPAIR")
	Debug("noise")

	if strings.Contains(out.String(), "STATE TRANSITION") {
		t.Error("quiet console should not show info records")
	}

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 trace line, got %d: %q", len(lines), trace.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("trace line is not JSON: %v", err)
	}
	if rec["to"] != "REPAIR" {
		t.Errorf("unexpected trace record %v", rec)
	}
}

func TestInit_TraceFileKeepsAttrs(t *testing.T) {
	trace := &bytes.Buffer{}
	Init(Options{Output: &bytes.Buffer{}, TraceFile: trace})
	defer resetLogger()

	With("document", "gb50016.txt").WithGroup("repair").Info("attempt", "n", 1)

	if !strings.Contains(trace.String(), `"document":"gb50016.txt"`) {
		t.Errorf("expected document attr in trace, got %q", trace.String())
	}
	if !strings.Contains(trace.String(), `"repair":{"n":1}`) {
		t.Errorf("expected grouped attr in trace, got %q", trace.String())
	}
}

func TestSetLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	custom := Logger()
	defer resetLogger()

	SetLogger(custom.With("custom", true))
	Info("via custom")
	if !strings.Contains(buf.String(), "custom=true") {
		t.Errorf("expected custom logger to be used, got %q", buf.String())
	}
}
