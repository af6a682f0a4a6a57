package abuse

import (
	"sync"
	"time"
)

// tempBanEntry mirrors original_source's cBanList::sTempBan: an expiry, a
// human reason, and a ban type (cbanlist.h eBT_*).
type tempBanEntry struct {
	until  time.Time
	reason string
	typ    BanType
}

// TempBanTable holds the two temporary (non-persistent) ban tables the
// core consults before completing a login: one keyed by nick, one by IP.
// Entries expire on their own; Sweep reclaims memory for already-expired
// rows so the table doesn't grow unbounded between logins.
type TempBanTable struct {
	mu    sync.Mutex
	nicks map[string]tempBanEntry
	ips   map[string]tempBanEntry
}

// NewTempBanTable returns an empty table.
func NewTempBanTable() *TempBanTable {
	return &TempBanTable{
		nicks: make(map[string]tempBanEntry),
		ips:   make(map[string]tempBanEntry),
	}
}

// BanNick adds or replaces a temporary ban for nick, expiring at until.
func (t *TempBanTable) BanNick(nick string, until time.Time, reason string, typ BanType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nicks[nick] = tempBanEntry{until: until, reason: reason, typ: typ}
}

// BanIP adds or replaces a temporary ban for ip, expiring at until.
func (t *TempBanTable) BanIP(ip string, until time.Time, reason string, typ BanType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ips[ip] = tempBanEntry{until: until, reason: reason, typ: typ}
}

// CheckNick reports whether nick is currently temp-banned, returning the
// reason and type if so. Expired entries are treated as absent and lazily
// removed.
func (t *TempBanTable) CheckNick(nick string, now time.Time) (reason string, typ BanType, banned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.nicks[nick]
	if !ok {
		return "", 0, false
	}
	if now.After(e.until) {
		delete(t.nicks, nick)
		return "", 0, false
	}
	return e.reason, e.typ, true
}

// CheckIP reports whether ip is currently temp-banned.
func (t *TempBanTable) CheckIP(ip string, now time.Time) (reason string, typ BanType, banned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.ips[ip]
	if !ok {
		return "", 0, false
	}
	if now.After(e.until) {
		delete(t.ips, ip)
		return "", 0, false
	}
	return e.reason, e.typ, true
}

// Sweep removes every expired entry from both tables, returning the
// total number removed. Intended to be called periodically by the hub's
// housekeeping timer rather than relying solely on lazy removal.
func (t *TempBanTable) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, e := range t.nicks {
		if now.After(e.until) {
			delete(t.nicks, k)
			removed++
		}
	}
	for k, e := range t.ips {
		if now.After(e.until) {
			delete(t.ips, k)
			removed++
		}
	}
	return removed
}
