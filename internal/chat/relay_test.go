package chat

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRelay_Channel(t *testing.T) {
	relay := NewRedisRelay(unreachableRedis(t), "finder-chat:room:", NewRegistry(zerolog.Nop()), zerolog.Nop())
	assert.Equal(t, "finder-chat:room:item-7", relay.channel("item-7"))
}

func TestRedisRelay_FallsBackToLocalDelivery(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	c := NewClient("a", newFakeConn(), 4)
	reg.Join("X", c)
	relay := NewRedisRelay(unreachableRedis(t), "finder-chat:room:", reg, zerolog.Nop())

	require.NoError(t, relay.Broadcast(context.Background(), "X", []byte(`{"event":"newMessage","data":{}}`)))

	events := drain(t, c)
	require.Len(t, events, 1)
	assert.Equal(t, EventNewMessage, events[0].Event)
}

func TestRedisRelay_RunFailsWithoutRedis(t *testing.T) {
	relay := NewRedisRelay(unreachableRedis(t), "finder-chat:room:", NewRegistry(zerolog.Nop()), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, relay.Run(ctx))
}
