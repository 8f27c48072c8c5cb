// Package events broadcasts guard events on a Redis pub/sub channel so other
// services can react to freezes and denials.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "walletguard:events"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes every event it audits as JSON.
type RedisPublisher struct {
	client  publisher
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(client publisher, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish sends one event and reports how many subscribers received it.
func (p *RedisPublisher) Publish(ctx context.Context, evt model.Event) (int64, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Result()
}

func (p *RedisPublisher) Audit(ctx context.Context, evt model.Event) {
	if _, err := p.Publish(ctx, evt); err != nil {
		p.logger.Warn("publish event",
			zap.String("channel", p.channel),
			zap.String("kind", string(evt.Kind)),
			zap.Error(err))
	}
}

// Subscribe delivers events from channel to handler until ctx is done.
// Messages that do not decode are skipped.
func Subscribe(ctx context.Context, rdb redis.UniversalClient, channel string, handler func(model.Event)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			handler(evt)
		}
	}
}
