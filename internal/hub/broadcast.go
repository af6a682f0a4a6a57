package hub

import (
	"strings"

	"vhub/internal/identity"
)

// sendToAll writes frame to every in-list member. delay batches into the
// recipient's writer buffer rather than forcing a flush.
func (h *Hub) sendToAll(frame string, delay bool) {
	h.Users.Each(func(u *identity.User) {
		if u.Conn == nil {
			return
		}
		_ = u.Conn.Send([]byte(frame), delay)
	})
}

// sendToAllWithClass writes frame to every in-list member whose class
// falls within [min, max].
func (h *Hub) sendToAllWithClass(frame string, min, max identity.Class, delay bool) {
	h.Users.Each(func(u *identity.User) {
		if u.Conn == nil || u.Class < min || u.Class > max {
			return
		}
		_ = u.Conn.Send([]byte(frame), delay)
	})
}

// sendToAllWithFeature writes frame to every in-list member whose
// Connection negotiated the given $Supports feature.
func (h *Hub) sendToAllWithFeature(frame string, feature string, delay bool) {
	h.Users.Each(func(u *identity.User) {
		if u.Conn == nil {
			return
		}
		fc, ok := u.Conn.(featureHaver)
		if !ok || !fc.HasFeature(feature) {
			return
		}
		_ = u.Conn.Send([]byte(frame), delay)
	})
}

// sendToAllWithoutFeature is the complement of sendToAllWithFeature —
// used for the MyINFO TLS-filter split: members without the feature get a
// rewritten frame instead of being skipped entirely.
func (h *Hub) sendToAllWithoutFeature(frame string, feature string, delay bool) {
	h.Users.Each(func(u *identity.User) {
		if u.Conn == nil {
			return
		}
		fc, ok := u.Conn.(featureHaver)
		if ok && fc.HasFeature(feature) {
			return
		}
		_ = u.Conn.Send([]byte(frame), delay)
	})
}

// sendToAllWithNick personalizes frame by splicing each recipient's own
// nick between prefix and suffix before sending, for per-user
// $BadNick-style replies broadcast hub-wide. No handler calls it.
func (h *Hub) sendToAllWithNick(prefix, suffix string, delay bool) {
	h.Users.Each(func(u *identity.User) {
		if u.Conn == nil {
			return
		}
		var b strings.Builder
		b.WriteString(prefix)
		b.WriteString(u.Nick)
		b.WriteString(suffix)
		_ = u.Conn.Send([]byte(b.String()), delay)
	})
}

// sendToOne writes frame to a single named user, if connected and in-list.
// Returns false if the nick was not found.
func (h *Hub) sendToOne(nickHash uint64, frame string, delay bool) bool {
	u := h.Users.Get(nickHash)
	if u == nil || u.Conn == nil {
		return false
	}
	_ = u.Conn.Send([]byte(frame), delay)
	return true
}

// featureHaver is implemented by session.Connection; declared locally so
// broadcast.go only depends on identity.ConnHandle plus this extra method,
// not on internal/session directly (avoiding an import solely for a type
// assertion target).
type featureHaver interface {
	HasFeature(name string) bool
}

// myINFOTLSFilter splits a MyINFO broadcast by TLS feature support: users
// with the TLS feature receive frame unmodified; users without it receive
// rewrite(frame) instead (the same frame with the TLS status bit cleared).
func (h *Hub) myINFOTLSFilter(frame string, rewrite func(string) string, delay bool) {
	h.sendToAllWithFeature(frame, "TLS", delay)
	h.sendToAllWithoutFeature(rewrite(frame), "TLS", delay)
}
