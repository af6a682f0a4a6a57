package identity

import (
	"strings"
	"sync"
	"time"
)

// ConnHandle is the minimal surface User needs from its owning connection.
// Defined here (rather than importing internal/session) to avoid a cycle:
// session.Connection implements this interface and assigns itself as a
// User's Conn field. A bot has a nil Conn.
type ConnHandle interface {
	Send(frame []byte, delay bool) error
	RemoteIP() string
	Close(reason string)
}

// User is the logical, nick-identified hub participant. It outlives
// individual frames but not its Connection: constructed on the first valid
// MyINFO (until then the Connection alone carries the validated nick) and
// put "in list" at that same point, destroyed with its Connection.
type User struct {
	mu sync.RWMutex

	Nick     string
	NickHash uint64

	Class Class

	ShareBytes int64
	Passive    bool
	Status     Status

	RawMyINFO  string
	fakeMyINFO string
	fakeDirty  bool

	ExtJSON      string
	extJSONDirty bool

	Reg *RegData // nil for unregistered sessions

	ClassProtect  Class
	HideKickClass Class

	InList bool
	Conn   ConnHandle // nil for bots

	lastEvent [eventKindCount]time.Time
	lastHash  [eventKindCount]uint64
}

// NewUser constructs a User for a freshly validated nick. The caller sets
// Conn after construction (nil for a bot/pinger).
func NewUser(nick string) *User {
	return &User{
		Nick:     nick,
		NickHash: HashNick(nick),
		Class:    ClassGuest,
		fakeDirty: true,
	}
}

// IsBot reports whether this user has no live connection backing it.
func (u *User) IsBot() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.Conn == nil
}

// SetMyINFO stores the raw frame and marks the cached "fake" (broadcast)
// form dirty so the next read rebuilds it.
func (u *User) SetMyINFO(raw string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.RawMyINFO = raw
	u.fakeDirty = true
}

// FakeMyINFO returns the cached broadcast-form MyINFO, rebuilding it from
// RawMyINFO if dirty. The "fake" form lets the hub substitute a masked
// share, hidden status, or class-derived tag without mutating RawMyINFO.
func (u *User) FakeMyINFO(mask func(raw string) string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fakeDirty {
		if mask != nil {
			u.fakeMyINFO = mask(u.RawMyINFO)
		} else {
			u.fakeMyINFO = u.RawMyINFO
		}
		u.fakeDirty = false
	}
	return u.fakeMyINFO
}

// InvalidateExtJSON marks the cached ExtJSON broadcast form stale.
func (u *User) InvalidateExtJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.extJSONDirty = true
}

// CachedExtJSON returns the cached ExtJSON string, rebuilding via build if
// marked dirty.
func (u *User) CachedExtJSON(build func() string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.extJSONDirty {
		u.ExtJSON = build()
		u.extJSONDirty = false
	}
	return u.ExtJSON
}

// TouchEvent records now as the last occurrence of kind and returns the
// previous timestamp, so callers can compute elapsed time for flood checks
// in one call.
func (u *User) TouchEvent(kind EventKind, now time.Time) time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.lastEvent[kind]
	u.lastEvent[kind] = now
	return prev
}

// SameAsLastHash reports whether hash matches the previously recorded
// hash for kind, then stores hash as the new last value — used for the
// repeated-identical-message anti-flood check.
func (u *User) SameAsLastHash(kind EventKind, hash uint64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	same := u.lastHash[kind] == hash && hash != 0
	u.lastHash[kind] = hash
	return same
}

// HashNick returns a stable, case-insensitive hash of nick, used as the
// key in UserCollection.
func HashNick(nick string) uint64 {
	lower := strings.ToLower(nick)
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	for i := 0; i < len(lower); i++ {
		h ^= uint64(lower[i])
		h *= 1099511628211
	}
	return h
}
