package identity

import (
	"strings"
	"sync"
)

// Collection is a hash-indexed set of Users with three cached serialized
// broadcast forms (nicklist, infolist, iplist), maintained map-plus-dirty
// rather than rebuilt per broadcast. Add/Remove invalidate the caches;
// the next reader rebuilds lazily.
type Collection struct {
	mu    sync.RWMutex
	users map[uint64]*User
	order []uint64 // insertion order, for deterministic iteration

	nickDirty bool
	infoDirty bool
	ipDirty   bool

	nickForm string
	infoForm string
	ipForm   string

	totalShare int64
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{users: make(map[uint64]*User)}
}

// Add inserts u, replacing any existing entry for the same nick hash, and
// invalidates all three cached forms.
func (c *Collection) Add(u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.users[u.NickHash]; !exists {
		c.order = append(c.order, u.NickHash)
	}
	c.users[u.NickHash] = u
	c.invalidateLocked()
}

// Remove deletes the user with the given nick hash, if present.
func (c *Collection) Remove(nickHash uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[nickHash]; !ok {
		return
	}
	delete(c.users, nickHash)
	for i, h := range c.order {
		if h == nickHash {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.invalidateLocked()
}

func (c *Collection) invalidateLocked() {
	c.nickDirty = true
	c.infoDirty = true
	c.ipDirty = true
}

// Get returns the user for nickHash, or nil.
func (c *Collection) Get(nickHash uint64) *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[nickHash]
}

// Len returns the member count.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.users)
}

// Each invokes fn for every member in insertion order. fn must not call
// back into Add/Remove on this collection.
func (c *Collection) Each(fn func(*User)) {
	c.mu.RLock()
	ordered := make([]*User, 0, len(c.order))
	for _, h := range c.order {
		if u, ok := c.users[h]; ok {
			ordered = append(ordered, u)
		}
	}
	c.mu.RUnlock()
	for _, u := range ordered {
		fn(u)
	}
}

// NickList returns the cached "$NickList <a>$$<b>$$...|" form, rebuilding
// it if any member was added/removed since the last read.
func (c *Collection) NickList() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nickDirty {
		var b strings.Builder
		b.WriteString("$NickList ")
		for _, h := range c.order {
			u, ok := c.users[h]
			if !ok {
				continue
			}
			b.WriteString(u.Nick)
			b.WriteString("$$")
		}
		c.nickForm = b.String()
		c.nickDirty = false
	}
	return c.nickForm
}

// InfoList returns the concatenated, pipe-terminated fake-MyINFO frames
// for every member, rebuilding it if stale. mask is applied per-user the
// same way User.FakeMyINFO applies it.
func (c *Collection) InfoList(mask func(raw string) string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.infoDirty {
		var b strings.Builder
		var total int64
		for _, h := range c.order {
			u, ok := c.users[h]
			if !ok {
				continue
			}
			b.WriteString(u.FakeMyINFO(mask))
			b.WriteString("|")
			total += u.ShareBytes
		}
		c.infoForm = b.String()
		c.totalShare = total
		c.infoDirty = false
	}
	return c.infoForm
}

// IPList returns the cached "$UserIP <nick> <ip>$$..." form for operators
// with the UserIP2 feature, rebuilt lazily via ipOf.
func (c *Collection) IPList(ipOf func(*User) string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ipDirty {
		var b strings.Builder
		b.WriteString("$UserIP ")
		for _, h := range c.order {
			u, ok := c.users[h]
			if !ok {
				continue
			}
			b.WriteString(u.Nick)
			b.WriteString(" ")
			b.WriteString(ipOf(u))
			b.WriteString("$$")
		}
		c.ipForm = b.String()
		c.ipDirty = false
	}
	return c.ipForm
}

// TotalShare returns the cached sum of member ShareBytes, current as of
// the last InfoList rebuild.
func (c *Collection) TotalShare() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalShare
}
