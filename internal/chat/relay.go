package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisRelay fans room broadcasts out across service instances. Frames are
// published to prefix+conversationID and every instance, the publisher
// included, delivers them to its local room members.
type RedisRelay struct {
	client *redis.Client
	prefix string
	local  *Registry
	log    zerolog.Logger
}

func NewRedisRelay(client *redis.Client, prefix string, local *Registry, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		prefix: prefix,
		local:  local,
		log:    log.With().Str("component", "redis-relay").Logger(),
	}
}

func (r *RedisRelay) channel(conversationID string) string {
	return r.prefix + conversationID
}

// Broadcast publishes frame. When Redis is unreachable the frame is still
// delivered to local members.
func (r *RedisRelay) Broadcast(ctx context.Context, conversationID string, frame []byte) error {
	if err := r.client.Publish(ctx, r.channel(conversationID), frame).Err(); err != nil {
		r.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("publish failed, delivering locally")
		return r.local.Broadcast(ctx, conversationID, frame)
	}
	return nil
}

// Run subscribes to every room channel and delivers incoming frames until
// ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", r.prefix, err)
	}
	r.log.Info().Str("pattern", r.prefix+"*").Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			conversationID := strings.TrimPrefix(msg.Channel, r.prefix)
			_ = r.local.Broadcast(ctx, conversationID, []byte(msg.Payload))
		}
	}
}
