package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroker carries events over a Redis pub/sub channel so every API
// instance sees changes made through the others.
type RedisBroker struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBroker(client *redis.Client, channel string, log *slog.Logger) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{client: client, channel: channel, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event, defaultBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("realtime redis: invalid payload", slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- event:
			case <-done:
				return
			}
		}
	}()

	return newSubscription(out, func() {
		close(done)
		_ = ps.Close()
	}), nil
}
