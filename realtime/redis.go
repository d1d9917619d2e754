package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relayChannel = "expense-tracker:changes"

// RedisRelay forwards locally published events to other replicas through Redis
// pub/sub and republishes theirs locally. Events carry the relay's origin id
// so a replica never re-delivers its own events.
type RedisRelay struct {
	client *redis.Client
	local  Publisher
	origin string
	logger *slog.Logger
}

func NewRedisRelay(client *redis.Client, local Publisher, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, local: local, origin: uuid.NewString(), logger: logger}
}

func (r *RedisRelay) Publish(e Event) {
	r.local.Publish(e)

	e.Origin = r.origin
	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("Encoding change event failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, relayChannel, payload).Err(); err != nil {
		r.logger.Warn("Relaying change event failed", "table", e.Table, "error", err)
	}
}

// Run republishes events from other replicas until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.logger.Warn("Dropping malformed relayed event", "error", err)
				continue
			}
			if e.Origin == r.origin {
				continue
			}
			r.local.Publish(e)
		}
	}
}
