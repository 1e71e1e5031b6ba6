// Package cache holds finished search responses for their TTL. Expiry is
// lazy: entries die when read past their deadline, and the insertion-oldest
// half is evicted whenever the cache is full.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 1000
)

type entry struct {
	page     types.ResultPage
	expires  time.Time
	inserted time.Time
}

type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	cap     int
	entries map[string]entry
	now     func() time.Time
}

type Option func(*ResultCache)

// WithClock injects the time source, used by tests to step past the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(ttl time.Duration, capacity int, opts ...Option) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ResultCache{
		ttl:     ttl,
		cap:     capacity,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type keyPayload struct {
	Query  string           `json:"query"`
	Filter types.Filters    `json:"filter"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Mode   types.SearchMode `json:"mode"`
}

// Key digests the full request shape, so the same query with different
// filters or pagination never collides. The caller's filter slices are left
// untouched; sorting happens on copies.
func Key(query string, filter types.Filters, limit, offset int, mode types.SearchMode) string {
	filter.VendorIDs = sortedCopy(filter.VendorIDs)
	filter.BrandIDs = sortedCopy(filter.BrandIDs)
	payload, err := json.Marshal(keyPayload{
		Query:  query,
		Filter: filter,
		Limit:  limit,
		Offset: offset,
		Mode:   mode,
	})
	if err != nil {
		// Filters are plain data; Marshal cannot fail on them.
		panic(err)
	}
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

func sortedCopy(s []string) []string {
	if len(s) == 0 {
		return s
	}
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}

func (c *ResultCache) Get(key string) (types.ResultPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return types.ResultPage{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return types.ResultPage{}, false
	}
	return e.page, true
}

func (c *ResultCache) Put(key string, page types.ResultPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cap {
		c.evictOldestHalf()
	}
	now := c.now()
	c.entries[key] = entry{page: page, expires: now.Add(c.ttl), inserted: now}
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// evictOldestHalf drops the oldest-inserted half of the entries. Called with
// the lock held.
func (c *ResultCache) evictOldestHalf() {
	type aged struct {
		key      string
		inserted time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, inserted: e.inserted})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].inserted.Equal(all[j].inserted) {
			return all[i].inserted.Before(all[j].inserted)
		}
		return all[i].key < all[j].key
	})
	half := len(all) / 2
	if half == 0 {
		half = len(all)
	}
	for _, a := range all[:half] {
		delete(c.entries, a.key)
	}
}
