package hub

import (
	"fmt"
	"hash/fnv"
	"strings"

	"vhub/internal/abuse"
	"vhub/internal/callback"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
)

func hashText(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// chatGate runs the shared anti-flood checks for Chat/To/MCTo:
// per-connection limiter, same-message-as-last rejection, length cap, and
// hub-wide flood gate. It returns false (and has already applied the
// appropriate action) if the message should be dropped.
func (h *Hub) chatGate(c *session.Connection, kind abuse.Kind, eventKind identity.EventKind, text string, maxLen int) bool {
	if maxLen > 0 && len(text) > maxLen {
		return false
	}
	if c.User != nil && c.User.SameAsLastHash(eventKind, hashText(text)) {
		return false
	}
	switch c.Limiter().Allow(kind) {
	case abuse.ActionDisconnect:
		c.CloseNow(session.CloseProtocolFlood)
		h.Metrics.RecordFloodAction(kind.String(), "disconnect")
		return false
	case abuse.ActionWarn:
		h.Metrics.RecordFloodAction(kind.String(), "warn")
		return false
	}
	return h.checkHubFlood(kind)
}

func (h *Hub) handleChat(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	text := msg.Raw
	if p := "<" + c.User.Nick + "> "; strings.HasPrefix(text, p) {
		text = text[len(p):]
	}
	if !h.chatGate(c, abuse.KindChat, identity.EventChat, text, maxChatLen) {
		return
	}
	frame := fmt.Sprintf("<%s> %s", c.User.Nick, text)
	if !h.Callbacks.Dispatch("ChatMsg", callback.Event{Args: callbackEventArgs(c, "text", text)}) {
		return
	}
	h.sendToAll(frame, false)
}

func (h *Hub) handleTo(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	if msg.Fields["from"] != c.Nick {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	if !h.chatGate(c, abuse.KindTo, identity.EventPriv, msg.Fields["body"], maxChatLen) {
		return
	}
	target := h.Users.Get(identity.HashNick(msg.Fields["target"]))
	if target == nil || target.Conn == nil {
		return
	}
	_ = target.Conn.Send([]byte(msg.Raw), false)
}

func (h *Hub) handleMCTo(c *session.Connection, msg message.Message) {
	if c.User == nil {
		return
	}
	if !h.chatGate(c, abuse.KindMCTo, identity.EventMCTo, msg.Fields["body"], maxChatLen) {
		return
	}
	target := h.Users.Get(identity.HashNick(msg.Fields["target"]))
	if target == nil || target.Conn == nil {
		return
	}
	_ = target.Conn.Send([]byte(msg.Raw), false)
}

const maxChatLen = 4096

func callbackEventArgs(c *session.Connection, key, val string) map[string]any {
	return map[string]any{"nick": c.Nick, key: val}
}
