package shared

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := WithLogger(NewLogger(&buf), "run", "abc")
	l.Info("pipeline started")

	out := buf.String()
	if !strings.Contains(out, "pipeline started") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "run=abc") {
		t.Errorf("expected child logger fields in output, got %q", out)
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tui.log")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	l.Info("hello")
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "debug", want: log.DebugLevel},
		{in: " WARN ", want: log.WarnLevel},
		{in: "", want: log.InfoLevel},
		{in: "loud", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateIDs(t *testing.T) {
	if a, b := GenerateID(), GenerateID(); a == b || len(a) != 36 {
		t.Errorf("unexpected ids %q %q", a, b)
	}

	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if len(state) != 32 || strings.Contains(state, "-") {
		t.Errorf("unexpected state %q", state)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"a": 1}

	compact, err := MarshalJSON(v, false)
	if err != nil || string(compact) != `{"a":1}` {
		t.Errorf("MarshalJSON(compact) = %s, %v", compact, err)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil || string(pretty) != "{\n  \"a\": 1\n}" {
		t.Errorf("MarshalJSON(pretty) = %s, %v", pretty, err)
	}
}
