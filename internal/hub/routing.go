package hub

import (
	"strings"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
)

// peerGates implements the shared ConnectToMe/RevConnectToMe checks:
// target exists and is in-list, not a bot, not self.
func (h *Hub) peerGates(c *session.Connection, targetNick string) (*identity.User, bool) {
	if targetNick == c.Nick {
		return nil, false
	}
	target := h.Users.Get(identity.HashNick(targetNick))
	if target == nil || target.Conn == nil || target.IsBot() {
		return nil, false
	}
	return target, true
}

func (h *Hub) handleConnectToMe(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	target, ok := h.peerGates(c, msg.Fields["nick"])
	if !ok {
		_ = c.Send([]byte("<Hub-Security> Your ConnectToMe request could not be delivered|"), false)
		return
	}
	if c.Limiter().Allow(abuse.KindConnectToMe) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}
	forwarded := "$ConnectToMe " + msg.Fields["nick"] + " " + rewritePeerAddr(msg.Fields["addr"], c.RemoteIP())
	_ = target.Conn.Send([]byte(forwarded), false)
}

func (h *Hub) handleRevConnectToMe(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	target, ok := h.peerGates(c, msg.Fields["to"])
	if !ok {
		return
	}
	if c.Passive && target.Passive {
		return // both passive: neither can accept a direct connection
	}
	if c.Limiter().Allow(abuse.KindRevConnectToMe) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}
	if !h.checkHubFlood(abuse.KindRevConnectToMe) {
		return
	}
	_ = target.Conn.Send([]byte(msg.Raw), false)
}

// rewritePeerAddr replaces the host portion of addr with realIP when they
// differ: the frame is forwarded verbatim with the IP replaced by the
// real peer IP whenever the client-supplied IP does not match it.
func rewritePeerAddr(addr, realIP string) string {
	idx := strings.IndexByte(addr, ':')
	if idx < 0 {
		return addr
	}
	host, port := addr[:idx], addr[idx:]
	if host == realIP {
		return addr
	}
	return realIP + port
}

// handleSR forwards a passive search result to its addressed recipient,
// stripping the routing suffix, and enforces the sender's per-search-result
// quota.
func (h *Hub) handleSR(c *session.Connection, msg message.Message) {
	to := msg.Fields["to"]
	if to == "" {
		return // hub-wide result with no addressed recipient; nothing to route
	}
	target := h.Users.Get(identity.HashNick(to))
	if target == nil || target.Conn == nil {
		return
	}
	target.TouchEvent(identity.EventSR, nowFunc())
	if c.Limiter().Allow(abuse.KindSR) == abuse.ActionDisconnect {
		c.CloseNow(session.CloseProtocolFlood)
		return
	}
	frame := "$SR " + msg.Fields["from"] + " " + msg.Fields["body"]
	_ = target.Conn.Send([]byte(frame), false)
}
