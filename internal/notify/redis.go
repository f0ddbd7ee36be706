package notify

import (
	"context"
	"encoding/json"
	"fmt"

	platformredis "clearance/internal/platform/redis"
)

// RedisSink publishes notifications to a redis channel where delivery
// workers (email, push) subscribe.
type RedisSink struct {
	client  *platformredis.Client
	channel string
}

func NewRedisSink(client *platformredis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
