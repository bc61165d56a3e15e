package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/config"
	"github.com/spec-kit/parts-support/internal/domain"
)

// Redis wraps the go-redis client used for notification fan-out.
type Redis struct {
	Client  *redis.Client
	channel string
}

// NewRedis connects to Redis using the provided configuration. An empty
// address leaves the client unset and publishing disabled.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; notification fan-out disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client, channel: cfg.NotifyChannel}
}

// Enabled reports whether a client is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

type notificationPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ChannelFor returns the per-user channel name.
func (r *Redis) ChannelFor(userID string) string {
	return fmt.Sprintf("%s:%s", r.channel, userID)
}

// Deliver publishes the notification on the recipient's channel.
func (r *Redis) Deliver(ctx context.Context, n domain.Notification) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	payload, err := json.Marshal(notificationPayload{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Message:   n.Message,
		CreatedAt: n.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
	})
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, r.ChannelFor(n.UserID), payload).Err()
}

// Name identifies the sink in logs.
func (r *Redis) Name() string { return "redis" }
