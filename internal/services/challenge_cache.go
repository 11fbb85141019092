package services

import (
	"sync"
	"time"
)

// challengeEntry is an outstanding challenge awaiting a signature.
type challengeEntry struct {
	message  string
	identity string
	issuedAt time.Time
}

// challengeCache holds issued challenges keyed by challenge hash. Entries are
// short-lived: a signature only binds to a challenge the cache still knows,
// which defeats replays of older messages. In-memory on purpose: a challenge
// is only valid against the process that issued it.
type challengeCache struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
	ttl     time.Duration
}

func newChallengeCache(ttl time.Duration) *challengeCache {
	return &challengeCache{
		entries: make(map[string]challengeEntry),
		ttl:     ttl,
	}
}

func (c *challengeCache) put(hash string, entry challengeEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.entries[hash] = entry
}

// take consumes and returns the entry for hash when it belongs to identity.
// Each challenge is single use, but a mismatched identity leaves the entry in
// place: a stray submission must not burn another identity's outstanding
// challenge.
func (c *challengeCache) take(hash, identity string) (challengeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if !ok || entry.identity != identity {
		return challengeEntry{}, false
	}
	delete(c.entries, hash)
	if time.Since(entry.issuedAt) > c.ttl {
		return challengeEntry{}, false
	}
	return entry, true
}

func (c *challengeCache) sweepLocked() {
	cutoff := time.Now().Add(-c.ttl)
	for hash, entry := range c.entries {
		if entry.issuedAt.Before(cutoff) {
			delete(c.entries, hash)
		}
	}
}
