// Package coalesce collapses concurrent identical mutating requests
// into a single upstream call. It protects against double-submits
// (e.g. a client retrying after a timeout while the first attempt is
// still in flight); it is process-local and therefore best-effort in
// a multi-instance deployment, never a correctness guarantee.
package coalesce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Coalescer deduplicates in-flight calls by fingerprint and, for a
// short window after a success, replays the settled result to late
// duplicates. Failures are never replayed: a retry after an error
// always goes upstream again. The TTL window ages entries out
// individually instead of dropping the whole map at a size threshold.
type Coalescer struct {
	group singleflight.Group

	mu      sync.Mutex
	recent  map[string]settled
	ttl     time.Duration
	now     func() time.Time
	sweepAt time.Time
}

type settled struct {
	value any
	at    time.Time
}

// DefaultTTL is how long a settled result remains replayable.
const DefaultTTL = 5 * time.Second

// New creates a coalescer. A non-positive ttl disables the
// settled-result window; in-flight coalescing always applies.
func New(ttl time.Duration) *Coalescer {
	return &Coalescer{
		recent: make(map[string]settled),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Fingerprint builds a deduplication key from the operation name, the
// caller's credential and a business disambiguator. The credential is
// hashed so keys are safe to log.
func Fingerprint(operation, authorization, businessKey string) string {
	sum := sha256.Sum256([]byte(authorization))
	return strings.Join([]string{operation, hex.EncodeToString(sum[:8]), businessKey}, ":")
}

// Do executes fn once per fingerprint. Concurrent callers with the
// same key share the single in-flight result, success or failure.
// Within the TTL window after a success, callers get the stored
// result without a new upstream call; a settled failure is forgotten
// immediately so a retry reaches the upstream.
func (c *Coalescer) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	// The execution must not inherit the first caller's cancellation;
	// coalesced peers are still waiting on the shared result.
	execCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fn(execCtx)
		if err == nil {
			c.store(key, v)
		}
		return v, err
	})
	return v, err
}

func (c *Coalescer) lookup(key string) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.recent[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.at) > c.ttl {
		delete(c.recent, key)
		return nil, false
	}
	return entry.value, true
}

func (c *Coalescer) store(key string, value any) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.recent[key] = settled{value: value, at: now}

	// Sweep expired entries at most once per TTL period.
	if now.After(c.sweepAt) {
		for k, e := range c.recent {
			if now.Sub(e.at) > c.ttl {
				delete(c.recent, k)
			}
		}
		c.sweepAt = now.Add(c.ttl)
	}
}

// Len reports how many settled entries are currently retained.
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recent)
}
