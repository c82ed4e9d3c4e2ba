package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/multicreator/mintpipe"
)

const dedupKeyPrefix = "mint:fp:"

// RedisDedupRegistry shares the fingerprint set across processes.
// SETNX gives the test-and-set semantics the registry contract needs;
// the TTL is a crash-recovery backstop for reservations whose owning
// process died without releasing them.
type RedisDedupRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDedupRegistry(rdb *redis.Client, ttl time.Duration) *RedisDedupRegistry {
	return &RedisDedupRegistry{rdb: rdb, ttl: ttl}
}

func (r *RedisDedupRegistry) CheckAndReserve(ctx context.Context, fp mintpipe.Fingerprint) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, dedupKeyPrefix+string(fp), "1", r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisDedupRegistry) Release(ctx context.Context, fp mintpipe.Fingerprint) error {
	return r.rdb.Del(ctx, dedupKeyPrefix+string(fp)).Err()
}

// Persist rewrites the reservation without expiry. Confirmed mints
// must outlive the in-flight TTL or identical content could mint again
// a day later.
func (r *RedisDedupRegistry) Persist(ctx context.Context, fp mintpipe.Fingerprint) error {
	return r.rdb.Set(ctx, dedupKeyPrefix+string(fp), "1", 0).Err()
}
