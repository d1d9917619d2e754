package database

import (
	"context"
	"log/slog"
	"time"

	"expense-tracker/config"

	"github.com/redis/go-redis/v9"
)

// Redis is nil when no server is reachable.
var Redis *redis.Client

func ConnectRedis() {
	if config.AppConfig.RedisURL == "" {
		slog.Info("Redis not configured, revocations and change relay stay in-process")
		return
	}

	opts, err := redis.ParseURL(config.AppConfig.RedisURL)
	if err != nil {
		// Bare host:port addresses are accepted too.
		opts = &redis.Options{Addr: config.AppConfig.RedisURL}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("⚠️  Redis not available, running without it", "error", err)
		client.Close()
		return
	}

	Redis = client
	slog.Info("✅ Redis connected successfully")
}
