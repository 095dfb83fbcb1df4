package service

import (
	"context"
	"encoding/json"
	"fmt"
	"skillcert_backend/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// CertificationCache keeps a user's certification list close to the gate check.
// A miss is reported as (nil, false, nil).
type CertificationCache interface {
	Get(ctx context.Context, userID uint) ([]model.Certification, bool, error)
	Set(ctx context.Context, userID uint, certs []model.Certification) error
	Invalidate(ctx context.Context, userIDs ...uint) error
}

type RedisCertificationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCertificationCache(rdb *redis.Client, ttl time.Duration) *RedisCertificationCache {
	return &RedisCertificationCache{rdb: rdb, ttl: ttl}
}

func certCacheKey(userID uint) string {
	return fmt.Sprintf("skillcert:certs:%d", userID)
}

func (c *RedisCertificationCache) Get(ctx context.Context, userID uint) ([]model.Certification, bool, error) {
	raw, err := c.rdb.Get(ctx, certCacheKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var certs []model.Certification
	if err := json.Unmarshal(raw, &certs); err != nil {
		return nil, false, err
	}
	return certs, true, nil
}

func (c *RedisCertificationCache) Set(ctx context.Context, userID uint, certs []model.Certification) error {
	raw, err := json.Marshal(certs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, certCacheKey(userID), raw, c.ttl).Err()
}

func (c *RedisCertificationCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = certCacheKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// noCache is used when redis is not configured.
type noCache struct{}

func (noCache) Get(context.Context, uint) ([]model.Certification, bool, error) {
	return nil, false, nil
}
func (noCache) Set(context.Context, uint, []model.Certification) error { return nil }
func (noCache) Invalidate(context.Context, ...uint) error              { return nil }
