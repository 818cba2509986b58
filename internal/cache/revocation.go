package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache fronts auth.Store.IsRevoked with a Redis-backed set so
// hot-path JWT validation doesn't hit the relational store on every
// request (internal/auth.PGStore.IsRevoked notes this exact need).
type RevocationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRevocationCache builds a RevocationCache whose entries expire after
// ttl (bounded by the longest-lived JWT this gateway issues).
func NewRevocationCache(client *redis.Client, ttl time.Duration) *RevocationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RevocationCache{client: client, ttl: ttl}
}

func (c *RevocationCache) key(jti string) string {
	return "gw:revoked:" + jti
}

// Revoke marks jti as revoked for the cache's TTL.
func (c *RevocationCache) Revoke(ctx context.Context, jti string) error {
	if err := c.client.Set(ctx, c.key(jti), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: revoke %s: %w", jti, err)
	}
	return nil
}

// IsRevoked reports whether jti is marked revoked in the cache. A cache
// miss is NOT proof jti is valid; callers should fall back to the
// authoritative store on miss and populate the cache from that result.
func (c *RevocationCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := c.client.Get(ctx, c.key(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: check revocation for %s: %w", jti, err)
	}
	return true, nil
}

// CatalogInvalidator tracks per-entity cache-busting for catalog reads
// (spec §4.6 "periodic re-sync" and any admin mutation should invalidate
// whatever read-through cache sits in front of the catalog store).
type CatalogInvalidator struct {
	client *redis.Client
}

// NewCatalogInvalidator builds a CatalogInvalidator using client.
func NewCatalogInvalidator(client *redis.Client) *CatalogInvalidator {
	return &CatalogInvalidator{client: client}
}

// Bump increments the generation counter for kind, causing any
// generation-tagged cache entry for that kind to be treated as stale.
func (c *CatalogInvalidator) Bump(ctx context.Context, kind string) error {
	if err := c.client.Incr(ctx, "gw:catalog:gen:"+kind).Err(); err != nil {
		return fmt.Errorf("cache: bump generation for %s: %w", kind, err)
	}
	return nil
}

// Generation returns the current generation counter for kind.
func (c *CatalogInvalidator) Generation(ctx context.Context, kind string) (int64, error) {
	gen, err := c.client.Get(ctx, "gw:catalog:gen:"+kind).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read generation for %s: %w", kind, err)
	}
	return gen, nil
}
