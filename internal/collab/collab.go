// Package collab defines the interfaces the core calls out to for
// concerns it does not own: registration lookup, ban lookup, geo lookup,
// redirect lookup and IP history. The core only consumes these lookup
// contracts — persistence and network calls live behind whichever
// implementation is wired in (internal/sqlitestore for the demo store).
// Script/plugin callback dispatch is not defined here; internal/callback
// has its own Caller type.
package collab

import (
	"context"
	"time"

	"vhub/internal/identity"
)

// Registry looks up registered-user records by nick.
type Registry interface {
	Lookup(ctx context.Context, nick string) (*identity.RegData, error)
	VerifyPassword(ctx context.Context, reg *identity.RegData, attempt string) bool
}

// BanKind distinguishes the shape of a persisted ban entry.
type BanKind int

const (
	BanNick BanKind = iota
	BanIP
	BanIPRange
	BanHost
	BanShare
	BanPrefix
)

// BanRecord is one row from the persisted bans table.
type BanRecord struct {
	Kind    BanKind
	Pattern string
	Reason  string
	Expires time.Time // zero means permanent
}

// BanList answers whether a nick/IP/share tuple is currently banned.
type BanList interface {
	Check(ctx context.Context, nick, ip string, share int64) (*BanRecord, bool)
}

// GeoInfo is the cached geo lookup result attached to a Connection.
type GeoInfo struct {
	Country string
	City    string
	Zone    string // routing/LAN zone, used for per-zone capacity and LAN/WAN symmetry
}

// GeoLookup resolves an IP to cached geo information.
type GeoLookup interface {
	Lookup(ip string) GeoInfo
}

// RedirectLookup resolves a close reason/class into a custom redirect URL,
// used when policy closes dictate a redirect instead of a bare kick.
type RedirectLookup interface {
	RedirectFor(reason string, class identity.Class) (url string, ok bool)
}

// NilRegistry is a Registry that finds nobody registered — the default
// wiring for a hub running without a persistence backend.
type NilRegistry struct{}

func (NilRegistry) Lookup(context.Context, string) (*identity.RegData, error) { return nil, nil }
func (NilRegistry) VerifyPassword(context.Context, *identity.RegData, string) bool { return false }

// NilBanList bans nobody.
type NilBanList struct{}

func (NilBanList) Check(context.Context, string, string, int64) (*BanRecord, bool) { return nil, false }

// NilGeoLookup returns empty geo info for every address.
type NilGeoLookup struct{}

func (NilGeoLookup) Lookup(string) GeoInfo { return GeoInfo{} }

// NilRedirectLookup redirects nothing.
type NilRedirectLookup struct{}

func (NilRedirectLookup) RedirectFor(string, identity.Class) (string, bool) { return "", false }
