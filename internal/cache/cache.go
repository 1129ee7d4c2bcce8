// Package cache memoizes evaluation outcomes so repeated (job, resume) pairs
// never cost a second external call. The cache is strictly advisory; a miss
// is always safe to recompute.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/seekerworks/jobpilot/internal/domain"
)

// ErrMiss is returned by Get when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// DefaultTTL is how long an evaluation outcome stays fresh.
const DefaultTTL = 24 * time.Hour

// Cache stores evaluation outcomes under deterministic keys with a TTL.
// TTL expiry is the only eviction; cardinality of (job, resume) pairs is low
// enough that no size bound is needed.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Evaluation, error)
	Set(ctx context.Context, key string, value domain.Evaluation, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// Key derives the cache key for one (job, resume) pair. Jobs marshal through
// a fixed-field struct so the hash is order-independent and stable across
// runs; the natural key plus description covers everything the evaluation
// reads.
func Key(job domain.Job, resumeText string) string {
	subject := struct {
		Title       string   `json:"title"`
		Company     string   `json:"company"`
		Link        string   `json:"link"`
		Location    string   `json:"location"`
		Salary      string   `json:"salary"`
		Tags        []string `json:"tags"`
		Description string   `json:"description"`
	}{job.Title, job.Company, job.Link, job.Location, job.Salary, job.Tags, job.Description}

	data, _ := json.Marshal(subject)
	jobHash := sha256.Sum256(data)
	resumeHash := sha256.Sum256([]byte(resumeText))

	return fmt.Sprintf("eval:v1:%s:%s",
		hex.EncodeToString(jobHash[:]),
		hex.EncodeToString(resumeHash[:]))
}

// Counters tracks hit/miss totals for /stats.
type Counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *Counters) Hit()  { c.hits.Add(1) }
func (c *Counters) Miss() { c.misses.Add(1) }

// Snapshot returns the current totals.
func (c *Counters) Snapshot() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
