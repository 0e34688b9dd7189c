package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/vario/types"
)

// redisTestClient returns a client for VARIO_REDIS_ADDR or skips the test.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("VARIO_REDIS_ADDR")
	if addr == "" {
		t.Skip("VARIO_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedisSticky(t *testing.T) {
	client := redisTestClient(t)

	runStickyTests(t, func(t *testing.T) types.StickyStore {
		return NewRedisSticky(client, fmt.Sprintf("vario-test:%d", time.Now().UnixNano()))
	})
}

func TestRedisSticky_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisSticky(client, "")

	_, _, err := s.Get(context.Background(), "hero", "visitor-1")
	require.ErrorIs(t, err, types.ErrStoreUnavailable)

	_, err = s.Set(context.Background(), "hero", "visitor-1", "", "a")
	require.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestRedisSticky_Key(t *testing.T) {
	s := NewRedisSticky(nil, "")
	require.Equal(t, "vario:sticky:hero:visitor-1", s.key("hero", "visitor-1"))
}
