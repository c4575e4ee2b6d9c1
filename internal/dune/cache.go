package dune

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// resultCache keeps fetched tables for a limited time. Tables are immutable so
// they are shared rather than copied. Keys never contain the API key.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cached
	now     func() time.Time
}

type cached struct {
	t       *table.Table
	expires time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, entries: make(map[string]cached), now: time.Now}
}

func (c *resultCache) get(key string) (*table.Table, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.t, true
}

func (c *resultCache) put(key string, t *table.Table) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cached{t: t, expires: c.now().Add(c.ttl)}
}

// cacheKey is the query id plus its parameters in sorted, escaped form.
func cacheKey(queryID int, params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return fmt.Sprintf("%d?%s", queryID, v.Encode())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
