package hub

import (
	"fmt"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
)

// handleKick removes a named user from the hub, logging a temp-ban of the
// kicked nick so an immediate reconnect is also rejected. Requires at
// least ClassOp.
func (h *Hub) handleKick(c *session.Connection, msg message.Message) {
	if c.User == nil || c.User.Class < identity.ClassOp {
		return
	}
	nick := msg.Fields["nick"]
	target := h.Users.Get(identity.HashNick(nick))
	if target == nil || target.Class >= c.User.Class {
		return // can't kick an equal-or-higher class operator
	}
	if target.HideKickClass > c.User.Class {
		return
	}
	h.TempBans.BanNick(nick, nowFunc().Add(banDuration(h.cfg.Flood.TempBanMinutes)), "kicked by "+c.User.Nick, abuse.BanFlood)
	if target.Conn != nil {
		target.Conn.Close(string(session.CloseKicked))
	}
	h.announceQuit(target)
}

// handleOpForceMove redirects a named user to another hub address,
// gated identically to handleKick.
func (h *Hub) handleOpForceMove(c *session.Connection, msg message.Message) {
	if c.User == nil || c.User.Class < identity.ClassOp {
		return
	}
	target := h.Users.Get(identity.HashNick(msg.Fields["nick"]))
	if target == nil || target.Conn == nil || target.Class >= c.User.Class {
		return
	}
	if target.HideKickClass > c.User.Class {
		return
	}
	frame := fmt.Sprintf("$ForceMove %s|", msg.Fields["where"])
	_ = target.Conn.Send([]byte(frame), false)
	target.Conn.Close(string(session.CloseRedirect))
}

// handleUserIPRequest answers a UserIP request with the requested nicks'
// current IPs, restricted to operators.
func (h *Hub) handleUserIPRequest(c *session.Connection, msg message.Message) {
	if c.User == nil || c.User.Class < identity.ClassOp {
		return
	}
	var b []byte
	b = append(b, "$UserIP "...)
	first := true
	for _, nick := range splitNickList(msg.Fields["nicks"]) {
		u := h.Users.Get(identity.HashNick(nick))
		if u == nil || u.Conn == nil {
			continue
		}
		if !first {
			b = append(b, "$$"...)
		}
		first = false
		b = append(b, nick...)
		b = append(b, ' ')
		b = append(b, u.Conn.RemoteIP()...)
	}
	b = append(b, '|')
	_ = c.Send(b, false)
}

// handleGetINFO answers a targeted request for a single user's cached
// MyINFO line.
func (h *Hub) handleGetINFO(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	target := h.Users.Get(identity.HashNick(msg.Fields["target"]))
	if target == nil {
		return
	}
	_ = c.Send([]byte(target.FakeMyINFO(nil)), false)
}

func splitNickList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '$' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
