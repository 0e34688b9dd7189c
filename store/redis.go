package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/arloliu/vario/types"
)

// DefaultRedisKeyPrefix prefixes every sticky key written by RedisSticky.
const DefaultRedisKeyPrefix = "vario:sticky"

// RedisSticky is a StickyStore backed by Redis string keys.
//
// Keys have the form "<prefix>:<experimentID>:<token>" and never expire.
type RedisSticky struct {
	client redis.UniversalClient
	prefix string
}

var _ types.StickyStore = (*RedisSticky)(nil)

// NewRedisSticky wraps a Redis client.
//
// Parameters:
//   - client: Any go-redis client (single node, cluster or ring)
//   - prefix: Key prefix, DefaultRedisKeyPrefix when empty
func NewRedisSticky(client redis.UniversalClient, prefix string) *RedisSticky {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	return &RedisSticky{client: client, prefix: prefix}
}

// Get returns the variant mapped to token.
func (s *RedisSticky) Get(ctx context.Context, experimentID, token string) (string, bool, error) {
	variantID, err := s.client.Get(ctx, s.key(experimentID, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, unavailable("sticky get", experimentID, err)
	}

	return variantID, true, nil
}

// stickySetScript swaps KEYS[1] to ARGV[2] when it is unset or equals
// ARGV[1], and returns the value held afterwards.
var stickySetScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and current ~= ARGV[1] then
	return current
end
redis.call('SET', KEYS[1], ARGV[2])
return ARGV[2]
`)

// Set stores the mapping for token unless another value than previous is
// already mapped. The check and the write run as one Lua script.
func (s *RedisSticky) Set(ctx context.Context, experimentID, token, previous, variantID string) (string, error) {
	stored, err := stickySetScript.Run(ctx, s.client, []string{s.key(experimentID, token)}, previous, variantID).Text()
	if err != nil {
		return "", unavailable("sticky set", experimentID, err)
	}

	return stored, nil
}

func (s *RedisSticky) key(experimentID, token string) string {
	return s.prefix + ":" + experimentID + ":" + token
}
