package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

type redisRecord struct {
	Items   []Item    `json:"items"`
	SavedAt time.Time `json:"saved_at"`
}

// RedisStore keeps each cart as one JSON value under sf:cart:<identity>.
type RedisStore struct {
	kv  redis.KV
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore builds a store whose records expire after ttl of inactivity; zero keeps them forever.
func NewRedisStore(kv redis.KV, ttl time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{kv: kv, ttl: ttl, now: time.Now}, nil
}

func (s *RedisStore) Load(ctx context.Context, identity string) ([]Item, error) {
	// Reading a cart counts as activity and pushes its expiry out.
	raw, err := s.kv.GetEx(ctx, s.kv.CartKey(identity), s.ttl)
	if err != nil {
		if redis.IsNil(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("reading cart: %w", err)
	}
	var record redisRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	return record.Items, nil
}

func (s *RedisStore) Save(ctx context.Context, identity string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	payload, err := json.Marshal(redisRecord{Items: items, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.CartKey(identity), string(payload), s.ttl); err != nil {
		return fmt.Errorf("writing cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, identity string) error {
	if err := s.kv.Del(ctx, s.kv.CartKey(identity)); err != nil {
		return fmt.Errorf("deleting cart: %w", err)
	}
	return nil
}
