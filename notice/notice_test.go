package notice

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorder_DrainAndMax(t *testing.T) {
	r := &Recorder{Max: 2}
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		r.Report(ctx, Notice{Level: Info, Title: title})
	}

	got := r.Titles()
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Fatalf("Titles() = %v, want [two three]", got)
	}
	if n := len(r.Drain()); n != 2 {
		t.Errorf("Drain() returned %d notices, want 2", n)
	}
	if n := len(r.Drain()); n != 0 {
		t.Errorf("second Drain() returned %d notices", n)
	}
}

func TestTee(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Tee(a, nil, b).Report(context.Background(), Notice{Title: "x"})
	if len(a.Titles()) != 1 || len(b.Titles()) != 1 {
		t.Errorf("tee did not reach every reporter: %v %v", a.Titles(), b.Titles())
	}
}

func TestLogReporter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := LogReporter{Logger: logger}

	r.Report(context.Background(), Notice{Level: Error, Title: "Error adding expense", Description: "boom"})
	r.Report(context.Background(), Notice{Level: Warning, Title: "Group created"})

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "description=boom") {
		t.Errorf("error notice not logged at error level: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("warning notice not logged at warn level: %s", out)
	}
}
