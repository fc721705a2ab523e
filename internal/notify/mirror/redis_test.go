package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taproom/internal/beers/store"
	"taproom/pkg/platform/circuit"
)

func TestNewValidatesArguments(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	_, err := New(nil, "taproom:events")
	assert.Error(t, err)

	_, err = New(client, "")
	assert.Error(t, err)

	m, err := New(client, "taproom:events")
	require.NoError(t, err)
	assert.Equal(t, "redis-mirror", m.Name())
}

func TestOnNotifyReportsUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	m, err := New(client, "taproom:events", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)

	err = m.OnNotify(context.Background(), store.NewSnapshot(), "Beer 1 deleted from the collection")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror to redis")
}

func TestOnNotifySkipsWhileCircuitOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	breaker := circuit.New("redis-mirror", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	m, err := New(client, "taproom:events", WithTimeout(200*time.Millisecond), WithBreaker(breaker))
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, m.OnNotify(ctx, store.NewSnapshot(), "first"))
	require.Error(t, m.OnNotify(ctx, store.NewSnapshot(), "second"))
	assert.True(t, breaker.IsOpen())

	assert.NoError(t, m.OnNotify(ctx, store.NewSnapshot(), "third"), "open circuit skips redis")
}
