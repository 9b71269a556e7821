// Package state holds the in-memory structures shared by the sampler and
// the enforcement loop. Nothing here survives a process restart.
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// ActivityCache implements domain.ActivityCache.
// Writes are serialized by a mutex; reads load an immutable snapshot so the
// subject and timestamp are always observed together.
type ActivityCache struct {
	mu         sync.Mutex
	current    atomic.Pointer[domain.CachedForeground]
	exemptions *policy.Exemptions
}

// NewActivityCache creates an empty cache. Exempt subjects are never stored.
func NewActivityCache(exemptions *policy.Exemptions) *ActivityCache {
	return &ActivityCache{exemptions: exemptions}
}

// Observe records subjectID as seen at at, unless a newer observation exists.
func (c *ActivityCache) Observe(subjectID string, at time.Time) {
	if subjectID == "" || (c.exemptions != nil && c.exemptions.IsExempt(subjectID)) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.current.Load(); cur != nil && at.Before(cur.ObservedAt) {
		return
	}
	c.current.Store(&domain.CachedForeground{SubjectID: subjectID, ObservedAt: at})
}

// Read returns the cached observation if it is at most maxAge old at now.
func (c *ActivityCache) Read(now time.Time, maxAge time.Duration) (domain.CachedForeground, bool) {
	cur := c.current.Load()
	if cur == nil {
		return domain.CachedForeground{}, false
	}
	if now.Sub(cur.ObservedAt) > maxAge {
		return domain.CachedForeground{}, false
	}
	return *cur, true
}

// Peek returns the raw cached value regardless of age (for status output).
func (c *ActivityCache) Peek() (domain.CachedForeground, bool) {
	cur := c.current.Load()
	if cur == nil {
		return domain.CachedForeground{}, false
	}
	return *cur, true
}

// Ensure ActivityCache implements domain.ActivityCache.
var _ domain.ActivityCache = (*ActivityCache)(nil)
