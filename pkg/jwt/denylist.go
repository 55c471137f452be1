package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/leveledu/pkg/cache"
)

// Denylist records revoked token ids.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryDenylist keeps revocations in process memory. It only covers tokens
// verified by the same instance.
type MemoryDenylist struct {
	lru *cache.LRU[string, struct{}]
}

// NewMemoryDenylist holds up to size revocations; a non-positive size uses 10000.
func NewMemoryDenylist(size int) *MemoryDenylist {
	if size <= 0 {
		size = 10000
	}
	return &MemoryDenylist{lru: cache.NewLRU[string, struct{}](size)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	d.lru.Set(jti, struct{}{}, ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := d.lru.Get(jti)
	return ok, nil
}

// RedisDenylist shares revocations between instances.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisDenylist stores revocations under prefix (default "jwt:revoked:").
func NewRedisDenylist(client redis.UniversalClient, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = "jwt:revoked:"
	}
	return &RedisDenylist{client: client, prefix: prefix}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return d.client.Set(ctx, d.prefix+jti, 1, ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, d.prefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
