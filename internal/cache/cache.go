package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// Manager — кэш с коротким TTL для внешних данных расписания
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{rdb: rdb, ttl: ttl}
}

// Get декодирует значение в dest; false — промах кэша
func (m *Manager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := m.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, key, raw, m.ttl).Err()
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.rdb.Del(ctx, key).Err()
}
