package redisc

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror is the durable/shared store collaborator: put-with-expiry, get
// and delete over keys the engine mirrors selected state into. It is a
// crash-recovery mirror, never the primary read path.
type Mirror struct {
	client *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

func (m *Mirror) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(ctx, key, value, ttl).Err()
}

// Get returns nil with no error when the key is absent or expired.
func (m *Mirror) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Mirror) Delete(ctx context.Context, key string) error {
	return m.client.Del(ctx, key).Err()
}
