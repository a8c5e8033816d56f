// Package jobcache provides the in-memory job result cache.
//
// The cache keeps only the most recently submitted job per deployment
// identity. It is a fallback source of status, not an audit log: a new
// submission for an identity replaces the previous job and its id stops
// resolving.
package jobcache

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/deployer/internal/core/domain"
)

// Cache is an in-memory store.JobResults. Reads run concurrently; writes are
// serialized. Every value crossing the API is a deep copy.
type Cache struct {
	mu         sync.RWMutex
	byIdentity map[string]*domain.Job
	byJobID    map[string]string // job id -> identity
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		byIdentity: make(map[string]*domain.Job),
		byJobID:    make(map[string]string),
	}
}

// Put registers job as the most recent job for its identity.
func (c *Cache) Put(_ context.Context, job domain.Job) error {
	identity := job.Unit.Identity.String()
	stored := job.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.byIdentity[identity]; ok {
		delete(c.byJobID, prev.ID)
	}
	c.byIdentity[identity] = &stored
	c.byJobID[job.ID] = identity
	return nil
}

// MostRecent returns the latest job for identity.
func (c *Cache) MostRecent(_ context.Context, identity string) (domain.Job, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.byIdentity[identity]
	if !ok {
		return domain.Job{}, false, nil
	}
	return job.Clone(), true, nil
}

// Get returns a job by id. Jobs replaced by a newer submission are gone.
func (c *Cache) Get(_ context.Context, jobID string) (domain.Job, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	identity, ok := c.byJobID[jobID]
	if !ok {
		return domain.Job{}, false, nil
	}
	return c.byIdentity[identity].Clone(), true, nil
}

// Update applies fn to a copy of the job and stores the copy if fn succeeds.
func (c *Cache) Update(_ context.Context, jobID string, fn func(*domain.Job) error) (domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	identity, ok := c.byJobID[jobID]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}

	working := c.byIdentity[identity].Clone()
	if err := fn(&working); err != nil {
		return domain.Job{}, err
	}

	stored := working.Clone()
	c.byIdentity[identity] = &stored
	return working, nil
}

// Identities lists every identity with a cached job, sorted.
func (c *Cache) Identities(_ context.Context) ([]string, error) {
	c.mu.RLock()
	ids := make([]string, 0, len(c.byIdentity))
	for id := range c.byIdentity {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byIdentity)
}
