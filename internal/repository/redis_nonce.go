package repository

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// consumeNonce stores ARGV[1] when it is above the last consumed nonce.
var consumeNonce = redis.NewScript(`
local last = redis.call("GET", KEYS[1])
if last and tonumber(last) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// RedisNonceStore shares consumed caller nonces across gateway replicas.
type RedisNonceStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisNonceStore(client *RedisClient, ttl time.Duration) *RedisNonceStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisNonceStore{
		client: client.Client,
		ttl:    ttl,
		prefix: "levergate:nonce:",
	}
}

func (s *RedisNonceStore) Consume(ctx context.Context, caller common.Address, nonce *big.Int) (bool, error) {
	ok, err := consumeNonce.Run(ctx, s.client, []string{s.prefix + caller.Hex()}, nonce.String(), s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return ok == 1, nil
}
