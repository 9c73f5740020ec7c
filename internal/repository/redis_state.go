package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrStaleState is returned when a save would overwrite a newer version.
var ErrStaleState = errors.New("stale engine state")

// saveIfNewer writes ARGV[2] only when ARGV[1] is above the stored version.
var saveIfNewer = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "state", ARGV[2])
return 1
`)

type RedisStateStore struct {
	client *redis.Client
	key    string
}

func NewRedisStateStore(client *RedisClient, key string) *RedisStateStore {
	if key == "" {
		key = "levergate:state"
	}
	return &RedisStateStore{client: client.Client, key: key}
}

func (s *RedisStateStore) Load(ctx context.Context) (*model.EngineState, error) {
	raw, err := s.client.HGet(ctx, s.key, "state").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.EngineState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode engine state: %w", err)
	}
	if state.Exchanges == nil {
		state.Exchanges = make(map[string]*model.ExchangeSettings)
	}
	return &state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state *model.EngineState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ok, err := saveIfNewer.Run(ctx, s.client, []string{s.key}, state.Version, payload).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return fmt.Errorf("%w: version %d", ErrStaleState, state.Version)
	}
	return nil
}
