// Package notice carries transient user-facing notifications (title plus
// description) from the state containers to whatever surface presents them.
package notice

import (
	"context"
	"log/slog"
	"sync"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

type Notice struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Reporter interface {
	Report(ctx context.Context, n Notice)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(ctx context.Context, n Notice)

func (f ReporterFunc) Report(ctx context.Context, n Notice) { f(ctx, n) }

// Discard drops every notice.
var Discard Reporter = ReporterFunc(func(context.Context, Notice) {})

// LogReporter writes notices to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(ctx context.Context, n Notice) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Level {
	case Warning:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	logger.Log(ctx, level, n.Title, "description", n.Description)
}

// Recorder keeps notices in memory until drained. When Max is positive only
// the newest Max notices are kept. It is safe for concurrent use.
type Recorder struct {
	Max int

	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Report(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	if r.Max > 0 && len(r.notices) > r.Max {
		r.notices = append([]Notice(nil), r.notices[len(r.notices)-r.Max:]...)
	}
	r.mu.Unlock()
}

// Drain returns the recorded notices and forgets them.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Titles returns the titles recorded so far without draining.
func (r *Recorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.notices))
	for i, n := range r.notices {
		titles[i] = n.Title
	}
	return titles
}

// Tee fans a notice out to several reporters.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(ctx context.Context, n Notice) {
		for _, r := range reporters {
			if r != nil {
				r.Report(ctx, n)
			}
		}
	})
}
