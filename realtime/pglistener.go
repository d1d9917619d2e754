package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Channel is the NOTIFY channel the table triggers publish on.
const Channel = "table_changes"

const pingInterval = 90 * time.Second

// PGListener turns Postgres NOTIFY payloads into hub events.
type PGListener struct {
	listener *pq.Listener
	out      Publisher
	logger   *slog.Logger
}

func NewPGListener(dsn string, out Publisher, logger *slog.Logger) (*PGListener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Postgres listener event", "event", ev, "error", err)
		}
	}
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, report)
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen on %s: %w", Channel, err)
	}
	return &PGListener{listener: l, out: out, logger: logger}, nil
}

// Run forwards notifications until ctx is cancelled.
func (p *PGListener) Run(ctx context.Context) error {
	defer p.listener.Close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-p.listener.Notify:
			if n == nil {
				// Reconnected; anything could have changed meanwhile.
				p.logger.Info("Postgres listener reconnected, broadcasting refresh")
				for _, table := range Tables {
					p.out.Publish(Event{Table: table})
				}
				continue
			}
			ev, err := decodeNotification(n.Extra)
			if err != nil {
				p.logger.Warn("Dropping malformed change notification", "payload", n.Extra, "error", err)
				continue
			}
			p.out.Publish(ev)
		case <-ticker.C:
			if err := p.listener.Ping(); err != nil {
				p.logger.Warn("Postgres listener ping failed", "error", err)
			}
		}
	}
}

func decodeNotification(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Table == "" {
		return Event{}, fmt.Errorf("notification without table")
	}
	return ev, nil
}
