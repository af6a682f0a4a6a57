package hub

import (
	"context"
	"fmt"
	"strings"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
)

// minShareFor returns the configured share floor for class, scaled by the
// passive factor when the user connects passively.
func (h *Hub) minShareFor(class identity.Class, passive bool) int64 {
	min := h.cfg.Share.MinBytesByClass[class.String()]
	if passive && h.cfg.Share.PassiveMinFactor > 0 {
		min = int64(float64(min) * h.cfg.Share.PassiveMinFactor)
	}
	return min
}

func (h *Hub) handleMyINFO(c *session.Connection, msg message.Message) {
	if msg.Fields["nick"] != c.Nick {
		c.CloseNow(session.CloseSyntaxError) // nick spoofing
		return
	}

	share, err := message.ParseShareBytes(msg.Fields["share"])
	if err != nil {
		c.CloseNow(session.CloseSyntaxError)
		return
	}

	passive := len(msg.Fields["speedstatus"]) == 0 || msg.Fields["speedstatus"][0] != 'A'

	firstMyINFO := !c.HasStage(session.StageMyINFO)
	if firstMyINFO {
		if !c.AdvanceStage(session.StageMyINFO) {
			c.CloseNow(session.CloseSyntaxError)
			return
		}
		if _, banned := h.Bans.Check(context.Background(), c.Nick, c.RemoteIP(), share); banned {
			c.CloseNow(session.CloseBanned)
			return
		}
		if count := h.Clones.Observe(c.RemoteIP(), cloneTag(msg)); h.cfg.Flood.MaxClones > 0 && count >= h.cfg.Flood.MaxClones {
			until := nowFunc().Add(banDuration(h.cfg.Flood.TempBanMinutes))
			h.TempBans.BanNick(c.Nick, until, "clone detected", abuse.BanClone)
			h.Metrics.RecordTempBan(abuse.BanClone.String())
			c.CloseNow(session.CloseClone)
			return
		}
	}

	class := identity.ClassGuest
	if c.Reg != nil {
		class = c.Reg.Class
	}
	if share < h.minShareFor(class, passive) && class < identity.ClassOp {
		_ = c.Send([]byte(fmt.Sprintf("<%s> your share is below the minimum required on this hub|", h.cfg.Hub.Name)), false)
		c.CloseNow(session.CloseSyntaxError)
		return
	}

	c.Passive = passive

	if firstMyINFO {
		h.promoteToUser(c, msg.Raw, share, class)
		return
	}

	u := c.User
	if u == nil {
		return
	}
	if u.RawMyINFO == msg.Raw {
		return // unchanged, no rebroadcast
	}
	u.SetMyINFO(msg.Raw)
	u.ShareBytes = share
	h.broadcastMyINFO(u)
}

// promoteToUser constructs the identity.User for a connection's first
// valid MyINFO, applies persisted class/right flags, inserts it into the
// user list, and fires the login presentation sequence.
func (h *Hub) promoteToUser(c *session.Connection, rawMyINFO string, share int64, class identity.Class) {
	u := identity.NewUser(c.Nick)
	u.Conn = c
	u.Class = class
	u.ShareBytes = share
	u.Passive = c.Passive
	u.Reg = c.Reg
	u.SetMyINFO(rawMyINFO)
	if c.Reg != nil {
		u.ClassProtect = c.Reg.ClassProtect
		u.HideKickClass = c.Reg.ClassHideKick
	}

	c.User = u
	h.Users.Add(u)
	c.AdvanceStage(session.StageLoginDone)

	h.Metrics.SetUsersOnline(h.Users.Len())
	h.showUserToAll(u)
	h.sendLoginWelcome(c, u)
}

// cloneTag builds the clone-comparison key from a MyINFO frame, normalizing
// the two tag regions that legitimately differ between two sessions of the
// same real client: the mode between ",M:" and ",H:", and hub count
// between ",H:" and ",S:". Without erasing these, a client that reconnects
// and reports a different mode/hub count would fail to match its own
// earlier session as a clone.
func cloneTag(msg message.Message) string {
	temp := msg.Fields["description"]
	if posh := strings.Index(temp, ",M:"); posh >= 0 {
		if poss := strings.Index(temp, ",H:"); poss > posh {
			temp = temp[:posh+3] + temp[poss:]
		}
	}
	if posh := strings.Index(temp, ",H:"); posh >= 0 {
		if poss := strings.Index(temp, ",S:"); poss > posh {
			temp = temp[:posh+3] + temp[poss:]
		}
	}
	return temp + "|" + msg.Fields["share"]
}
