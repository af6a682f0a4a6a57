package hub

import (
	"fmt"
	"strings"

	"vhub/internal/identity"
	"vhub/internal/session"
)

// broadcastMyINFO rebroadcasts a user's updated MyINFO, applying the
// TLS-status filter split.
func (h *Hub) broadcastMyINFO(u *identity.User) {
	frame := u.FakeMyINFO(nil)
	h.myINFOTLSFilter(frame, clearTLSBit, true)
}

// clearTLSBit rewrites a MyINFO frame's status byte to drop the TLS flag,
// for delivery to recipients that didn't negotiate the TLS feature. It
// splits the frame the same way parseMyINFO does — "$ALL <nick> " then the
// remaining "$"-delimited segments — and clears identity.StatusTLS from
// the last byte of the speed+status segment.
func clearTLSBit(frame string) string {
	const marker = "$ALL "
	allIdx := strings.Index(frame, marker)
	if allIdx < 0 {
		return frame
	}
	head := frame[:allIdx+len(marker)]
	tail := frame[allIdx+len(marker):]

	nickEnd := strings.IndexByte(tail, ' ')
	if nickEnd < 0 {
		return frame
	}
	head += tail[:nickEnd+1]
	tail = tail[nickEnd+1:]

	segs := strings.Split(tail, "$")
	if len(segs) < 6 || len(segs[2]) == 0 {
		return frame
	}

	b := []byte(segs[2])
	b[len(b)-1] &^= byte(identity.StatusTLS)
	segs[2] = string(b)

	return head + strings.Join(segs, "$")
}

// showUserToAll runs the login presentation sequence: MyINFO (with TLS
// filter), a short OpList entry if qualifying, UserIP to UserIP2
// operators, and BotList for bot accounts.
func (h *Hub) showUserToAll(u *identity.User) {
	frame := u.FakeMyINFO(nil)
	h.myINFOTLSFilter(frame, clearTLSBit, true)

	if u.Class >= identity.ClassOp {
		h.sendToAll(fmt.Sprintf("$OpList %s$$", u.Nick), true)
	}

	ipList := h.Users.IPList(func(u *identity.User) string {
		if u.Conn == nil {
			return ""
		}
		return u.Conn.RemoteIP()
	})
	h.Users.Each(func(r *identity.User) {
		if r.Class >= identity.ClassOp && hasFeature(r, "UserIP2") {
			_ = r.Conn.Send([]byte(ipList), true)
		}
	})

	if u.IsBot() {
		h.sendToAllWithFeature(fmt.Sprintf("$BotList %s$$", u.Nick), "BotList", true)
	}
}

// sendLoginWelcome sends the post-presentation block: hub name with
// topic, the current user list, and an optional $LogedIn for operator
// classes.
func (h *Hub) sendLoginWelcome(c *session.Connection, u *identity.User) {
	topic := h.topic
	if topic == "" {
		_ = c.Send([]byte(fmt.Sprintf("<%s> Welcome|", h.cfg.Hub.Name)), false)
	} else {
		_ = c.Send([]byte(fmt.Sprintf("<%s> %s|", h.cfg.Hub.Name, topic)), false)
	}
	_ = c.Send([]byte(h.Users.NickList()), false)
	_ = c.Send([]byte(h.Users.InfoList(nil)), false)

	if u.Class >= identity.ClassOp {
		_ = c.Send([]byte("$LogedIn|"), false)
	}
}

// announceQuit broadcasts a user's departure and removes them from the
// collection.
func (h *Hub) announceQuit(u *identity.User) {
	h.Users.Remove(u.NickHash)
	h.sendToAll(fmt.Sprintf("$Quit %s|", u.Nick), true)
	h.Metrics.SetUsersOnline(h.Users.Len())
}
