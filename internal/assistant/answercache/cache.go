// Package answercache implements a small TTL-bounded cache for short factual
// answers, keyed by normalized utterance text plus the count of visible
// calendar events.
//
// The calendar-count component of the key makes the cache self-invalidating
// across calendar mutations: the same question asked before and after an event
// is created or deleted hashes to a different key.
//
// The cache is scoped to a single process and constructed once; it must never
// be shared across unrelated users. All methods are safe for concurrent use.
package answercache

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTTL is how long a cached answer stays valid.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds the number of retained entries. When exceeded,
	// the oldest-inserted entry is evicted (insertion order, not LRU).
	DefaultCapacity = 100

	// maxCacheableLen is the longest answer worth caching. Longer answers are
	// almost always context-dependent prose.
	maxCacheableLen = 100
)

// entry pairs a cached answer with its insertion time.
type entry struct {
	answer   string
	inserted time.Time
}

// Cache is a TTL + capacity bounded answer cache with an injected clock.
type Cache struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	order   []string // insertion order of live keys, oldest first
}

// Option configures a [Cache] during construction.
type Option func(*Cache)

// WithTTL overrides [DefaultTTL].
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithCapacity overrides [DefaultCapacity].
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// WithClock injects a clock. Tests use this to simulate TTL expiry
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache with the default TTL, capacity, and wall clock.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		entries:  make(map[string]entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached answer for text given the current visible calendar
// event count. The second return is false when no live entry exists; expired
// entries are evicted on lookup.
func (c *Cache) Get(text string, calendarEventCount int) (string, bool) {
	key := Key(text, calendarEventCount)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.inserted) >= c.ttl {
		c.removeLocked(key)
		return "", false
	}
	return e.answer, true
}

// Put stores answer under the key for text and calendarEventCount, provided
// the answer is cacheable (see [Cacheable]). Storing over an existing key
// refreshes its insertion time and moves it to the back of the eviction order.
func (c *Cache) Put(text string, calendarEventCount int, answer string) {
	if !Cacheable(answer) {
		return
	}
	key := Key(text, calendarEventCount)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}
	c.entries[key] = entry{answer: answer, inserted: c.now()}
	c.order = append(c.order, key)

	for len(c.entries) > c.capacity {
		c.removeLocked(c.order[0])
	}
}

// Len returns the number of live entries, counting expired-but-unevicted ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// removeLocked deletes key from both the map and the order slice.
// Must be called with c.mu held.
func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Cacheable reports whether an answer may be cached: short, and free of
// schedule-dependent wording that would go stale after a calendar mutation.
func Cacheable(answer string) bool {
	if utf8.RuneCountInString(answer) >= maxCacheableLen {
		return false
	}
	lower := strings.ToLower(answer)
	return !strings.Contains(lower, "calendar") && !strings.Contains(lower, "schedule")
}

// Key builds the cache key: normalized text joined with the visible calendar
// event count, so a mutation that changes the count invalidates prior answers.
func Key(text string, calendarEventCount int) string {
	return Normalize(text) + "_" + strconv.Itoa(calendarEventCount)
}

// Normalize lowercases, trims, and strips every non-word, non-space character
// so punctuation variants of the same question collide.
func Normalize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
