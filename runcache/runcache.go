// Package runcache implements the run cache (C7): a content-addressed
// fingerprint index mapping (agent_uid, schema_id, version_hash,
// task_input_hash) to a prior successful run id, backed by core.RedisClient.
package runcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/workflowai/gateway/core"
)

// Policy is the request's cache directive (§4.7).
type Policy string

const (
	PolicyAuto   Policy = "auto"
	PolicyAlways Policy = "always"
	PolicyNever  Policy = "never"
)

// ErrMiss is returned by Lookup when no cached run exists for the fingerprint.
var ErrMiss = errors.New("runcache: miss")

// Fingerprint identifies one cacheable run shape.
type Fingerprint struct {
	AgentUID      int64
	SchemaID      int
	VersionHash   string
	TaskInputHash string
}

func (f Fingerprint) key() string {
	return fmt.Sprintf("%d:%d:%s:%s", f.AgentUID, f.SchemaID, f.VersionHash, f.TaskInputHash)
}

// Cache is the run cache, backed by core.RedisClient on core.RedisDBRunCache.
type Cache struct {
	redis *core.RedisClient
	ttl   time.Duration
}

// New builds a Cache. redis must already be opened against
// core.RedisDBRunCache with namespace core.RunCacheKeyPrefix; ttl defaults to
// core.DefaultRunCacheTTL when zero.
func New(redis *core.RedisClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = core.DefaultRunCacheTTL
	}
	return &Cache{redis: redis, ttl: ttl}
}

// Lookup returns the cached run id for fp, or ErrMiss if none exists. Callers
// apply the policy decision (§4.7) themselves: Lookup never consults Policy.
func (c *Cache) Lookup(ctx context.Context, fp Fingerprint) (string, error) {
	runID, err := c.redis.Get(ctx, fp.key())
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("runcache: lookup: %w", err)
	}
	return runID, nil
}

// Store records fp -> runID with idempotent, first-writer-wins insert
// (Redis SETNX). It reports whether this call's write won; a lost race is
// not an error, since the race winner's mapping already points at an
// equally-valid completed run.
func (c *Cache) Store(ctx context.Context, fp Fingerprint, runID string) (wrote bool, err error) {
	wrote, err = c.redis.SetNX(ctx, fp.key(), runID, c.ttl)
	if err != nil {
		return false, fmt.Errorf("runcache: store: %w", err)
	}
	return wrote, nil
}

// ShouldLookup reports whether a Lookup call is worth making for policy p
// (§4.7: "never" skips cache reads entirely).
func ShouldLookup(p Policy) bool {
	return p == PolicyAuto || p == PolicyAlways
}

// ShouldStore reports whether a successful completion should be written to
// the cache for policy p.
func ShouldStore(p Policy) bool {
	return p == PolicyAuto || p == PolicyAlways
}
