package notify

import (
	"context"
	"encoding/json"
	"log"

	redis "github.com/redis/go-redis/v9"
)

// Notifier is the fire-and-forget event boundary. Callers log failures and
// never let them affect the committed operation.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, _ string, _ any) error {
	return nil
}

// LogNotifier writes events to the process log. Used when no broker is
// configured so the event stream is still visible in dev.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	log.Printf("[notify] %s %s", event, body)
	return nil
}

// RedisNotifier publishes events on a redis pub/sub channel per event name.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(addr string, password string, db int, channel string) *RedisNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if channel == "" {
		channel = "tindahan.events"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func (n *RedisNotifier) Notify(ctx context.Context, event string, payload any) error {
	envelope := struct {
		Event   string `json:"event"`
		Payload any    `json:"payload"`
	}{Event: event, Payload: payload}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, body).Err()
}
