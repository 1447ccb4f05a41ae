package router

import "sync"

// PatternCache holds compiled matchers keyed by the literal pattern string.
// It is shared process-wide: identical patterns declared in any endpoint of
// any service reuse the same compiled matcher.
//
// Reads take a shared lock so concurrent resolution across services never
// blocks on already-cached patterns; only the first compilation of a new
// distinct pattern takes the write lock.
type PatternCache struct {
	mu       sync.RWMutex
	matchers map[string]*Matcher
}

// NewPatternCache creates an empty pattern cache.
func NewPatternCache() *PatternCache {
	return &PatternCache{matchers: make(map[string]*Matcher)}
}

// Get returns the compiled matcher for a pattern, compiling and caching it
// on first use.
func (c *PatternCache) Get(pattern string) (*Matcher, error) {
	c.mu.RLock()
	m, ok := c.matchers[pattern]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	compiled, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have compiled the same pattern in the window
	// between the read and write locks; keep the first one so callers
	// always observe a single shared matcher per pattern.
	if existing, ok := c.matchers[pattern]; ok {
		return existing, nil
	}
	c.matchers[pattern] = compiled
	return compiled, nil
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.matchers)
}
