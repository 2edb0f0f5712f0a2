package apiclient

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Tag groups cached queries so a mutation can drop every result it may have changed.
type Tag string

const (
	TagAuth           Tag = "Auth"
	TagDoctor         Tag = "Doctor"
	TagSpecialization Tag = "Specialization"
	TagAppointment    Tag = "Appointment"
)

// queryCache stores raw response bodies keyed by request identity. Each tag
// carries a generation counter so a response that raced an invalidation is
// never stored.
type queryCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	gens       map[Tag]uint64
}

type cacheEntry struct {
	tag       Tag
	body      []byte
	expiresAt time.Time
}

func newQueryCache(ttl time.Duration, maxEntries int, now func() time.Time) *queryCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &queryCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		gens:       make(map[Tag]uint64),
	}
}

func (c *queryCache) enabled() bool {
	return c != nil && c.ttl > 0
}

func (c *queryCache) get(key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneBytes(entry.body), true
}

// generation returns the current generation of tag; pass it to store.
func (c *queryCache) generation(tag Tag) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[tag]
}

// store keeps body unless tag was invalidated after gen was read.
func (c *queryCache) store(tag Tag, gen uint64, key string, body []byte) bool {
	if !c.enabled() {
		return false
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[tag] != gen {
		return false
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = cacheEntry{tag: tag, body: cloneBytes(body), expiresAt: expiry}
	return true
}

// invalidate drops every entry under the given tags.
func (c *queryCache) invalidate(tags ...Tag) {
	if c == nil || len(tags) == 0 {
		return
	}
	drop := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		drop[t] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for t := range drop {
		c.gens[t]++
	}
	for key, entry := range c.entries {
		if drop[entry.tag] {
			delete(c.entries, key)
		}
	}
}

func (c *queryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *queryCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *queryCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// cacheKey identifies a query by method, path, encoded parameters and the
// caller's token, so two users never share an entry.
func cacheKey(method, path string, query url.Values, token string) string {
	builder := strings.Builder{}
	builder.WriteString(method)
	builder.WriteString(" ")
	builder.WriteString(path)
	builder.WriteString("?")
	builder.WriteString(query.Encode())
	builder.WriteString("|")
	builder.WriteString(tokenFingerprint(token))
	return builder.String()
}

func tokenFingerprint(token string) string {
	if token == "" {
		return "anon"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
