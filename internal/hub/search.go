package hub

import (
	"fmt"
	"strings"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
)

// parseSearchQuery splits a $Search query chunk ("<limits>?<pattern>") and
// reports whether it qualifies as a TTH-exact search: the limits chunk's
// datatype code must be "9" and the pattern must be exactly "TTH:" plus a
// 39-character hash. A query with the "9" datatype but a pattern that
// doesn't match gets demoted to a normal substring search, same as
// cdcproto's DC_Search.
func parseSearchQuery(query string) (tth bool, hash string) {
	parts := strings.SplitN(query, "?", 5)
	if len(parts) != 5 {
		return false, ""
	}
	if parts[3] != "9" {
		return false, ""
	}
	pat := parts[4]
	if len(pat) != 43 || !strings.HasPrefix(pat, "TTH:") {
		return false, ""
	}
	return true, pat[4:]
}

// hasFeature reports whether u's connection negotiated the given $Supports
// token. Bots (nil Conn) never have features.
func hasFeature(u *identity.User, feature string) bool {
	if u.Conn == nil {
		return false
	}
	fc, ok := u.Conn.(featureHaver)
	return ok && fc.HasFeature(feature)
}

func hideShare(u *identity.User) bool {
	return u.Reg != nil && u.Reg.HideShare
}

// searchRecipient reports whether u should receive a fan-out of this search
// at all, mirroring SearchToAll's base filter chain (chat-only exclusion,
// share gates, minimum class, requester exclusion), plus the
// passive-to-passive exclusion that only ever applies when the requester's
// own search is passive.
func searchRecipient(requester *identity.User, requesterPassive, tth bool, u *identity.User) bool {
	if u.Conn == nil || u == requester || u.IsBot() {
		return false
	}
	if requesterPassive && u.Passive {
		return false // passive request to passive user: neither side can accept a direct connection
	}
	if tth && !hasFeature(u, "TTHSearch") {
		return false
	}
	if hasFeature(u, "ChatOnly") {
		return false
	}
	if u.ShareBytes <= 0 || hideShare(u) {
		return false
	}
	if u.Class < identity.ClassGuest {
		return false
	}
	return true
}

// fanSearch delivers long to every qualifying recipient, substituting short
// for recipients that negotiated TTHS, when the search is a qualifying
// TTH-exact search (tth true and short non-empty).
func (h *Hub) fanSearch(requester *identity.User, requesterPassive, tth bool, long, short string) {
	h.Users.Each(func(u *identity.User) {
		if !searchRecipient(requester, requesterPassive, tth, u) {
			return
		}
		if tth && short != "" && hasFeature(u, "TTHS") {
			_ = u.Conn.Send([]byte(short), true)
			return
		}
		_ = u.Conn.Send([]byte(long), true)
	})
}

// handleSearch fans a $Search request out to every in-list user able to
// answer it, splitting qualifying TTH-exact searches into the abbreviated
// $SA/$SP form for TTHS-supporting recipients and the long form for
// everyone else, gated by the system load detector and the requester's
// search-kind flood buckets.
func (h *Hub) handleSearch(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	if h.Load.Reject() {
		return // hub is in a load state that sheds new search fan-out
	}
	if c.Limiter().Allow(abuse.KindSearch) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}

	target := msg.Fields["target"]
	passive := strings.HasPrefix(target, "Hub:")

	if passive && !h.checkHubFlood(abuse.KindSearch) {
		return
	}

	tth, hash := parseSearchQuery(msg.Fields["query"])

	var short string
	if tth {
		if passive {
			short = fmt.Sprintf("$SP %s %s", hash, c.User.Nick)
		} else {
			short = fmt.Sprintf("$SA %s %s", hash, target)
		}
	}

	h.fanSearch(c.User, passive, tth, msg.Raw, short)
}

// handleSA handles a client-originated short active search ($SA <TTH> <ip:port>):
// the sender must have negotiated TTHS (clients that haven't shouldn't be
// emitting $SA at all), after which it's routed through the same fan-out
// gating as an active $Search for a TTH-exact pattern.
func (h *Hub) handleSA(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	if !c.HasFeature("TTHS") {
		c.CloseNow(session.CloseMissingFeature)
		return
	}
	if h.Load.Reject() {
		return
	}
	if c.Limiter().Allow(abuse.KindSearch) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}

	hash := msg.Fields["tth"]
	if len(hash) != 39 {
		return
	}
	addr := msg.Fields["addr"]

	long := fmt.Sprintf("$Search %s F?T?0?9?TTH:%s", addr, hash)
	h.fanSearch(c.User, false, true, long, msg.Raw)
}

// handleSP handles a client-originated short passive search ($SP <TTH> <nick>),
// the passive-search counterpart to handleSA. Its recipient gating also
// runs the hub-wide flood check, matching DC_SP's unconditional
// CheckProtoFloodAll call.
func (h *Hub) handleSP(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	if !c.HasFeature("TTHS") {
		c.CloseNow(session.CloseMissingFeature)
		return
	}
	if h.Load.Reject() {
		return
	}
	if c.Limiter().Allow(abuse.KindSearch) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}
	if !h.checkHubFlood(abuse.KindSearch) {
		return
	}

	hash := msg.Fields["tth"]
	if len(hash) != 39 {
		return
	}
	nick := msg.Fields["nick"]

	long := fmt.Sprintf("$Search Hub:%s F?T?0?9?TTH:%s", nick, hash)
	h.fanSearch(c.User, true, true, long, msg.Raw)
}
