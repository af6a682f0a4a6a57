package abuse

import "sync"

// cloneKey identifies a MyINFO+IP signature; two sessions sharing one are
// clones per original_source's clone-detection (same nick tag string seen
// from the same address twice).
type cloneKey struct {
	ip  string
	tag string
}

// CloneDetector tracks how many currently-connected sessions share a given
// (IP, MyINFO-tag) signature. A tag is the client-identifying substring of
// MyINFO (description+version token), not the whole frame, since share
// size and status legitimately vary run to run.
type CloneDetector struct {
	mu     sync.Mutex
	counts map[cloneKey]int
}

// NewCloneDetector returns an empty detector.
func NewCloneDetector() *CloneDetector {
	return &CloneDetector{counts: make(map[cloneKey]int)}
}

// Observe registers one more session with the given ip/tag and returns
// the resulting count, including this one. Callers compare the result
// against a configured max-clones threshold.
func (c *CloneDetector) Observe(ip, tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cloneKey{ip, tag}
	c.counts[k]++
	return c.counts[k]
}

// Forget removes one session with the given ip/tag signature, called on
// disconnect or MyINFO change.
func (c *CloneDetector) Forget(ip, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cloneKey{ip, tag}
	if n, ok := c.counts[k]; ok {
		if n <= 1 {
			delete(c.counts, k)
		} else {
			c.counts[k] = n - 1
		}
	}
}
