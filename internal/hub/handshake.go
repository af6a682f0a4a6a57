package hub

import (
	"context"
	"fmt"
	"strings"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/session"
	"vhub/internal/wire"
)

// lockProduct is the fixed Pk= token sent in $Lock, identifying the hub
// software rather than the operator-configured hub name — a hub name
// containing a space would otherwise break the space-delimited Pk=/version
// parse clients run on the lock line.
const lockProduct = "NMDC"

// recognizedSupports is the feature token set the server advertises and
// recognizes in $Supports.
var recognizedSupports = []string{
	"OpPlus", "NoHello", "NoGetINFO", "DHT0", "QuickList", "BotINFO",
	"ZPipe0", "ChatOnly", "MCTo", "UserCommand", "BotList", "HubTopic",
	"UserIP2", "TTHSearch", "Feed", "TTHS", "IN", "BanMsg", "TLS",
	"FailOver", "NickChange", "ClientNick", "ZLine", "GetZBlock", "ACTM",
	"SaltPass", "NickRule", "SearchRule", "HubURL", "ExtJSON2",
}

// Accept runs temp-ban and connect-flood gating on a newly dialed socket
// and, if admitted, emits the Lock challenge — the first bytes the client
// expects on accept.
func (h *Hub) Accept(c *session.Connection) {
	ip := c.RemoteIP()

	if reason, typ, banned := h.TempBans.CheckIP(ip, nowFunc()); banned {
		h.log.WithFields(map[string]interface{}{"ip": ip, "type": typ.String()}).Info("rejecting banned IP")
		c.CloseNow(session.CloseBanned)
		h.Metrics.RecordConnection(false)
		return
	}
	if !h.ConnFlood.Allow(ip) {
		c.CloseNow(session.CloseReconnectFlood)
		h.Metrics.RecordConnection(false)
		return
	}

	h.Track(c)
	h.Metrics.RecordConnection(true)

	lock := wire.BuildLock(lockProduct, "1,0091", false)
	c.SetLockChallenge(strings.SplitN(lock, " ", 2)[0])
	_ = c.Send([]byte("$Lock "+lock+"|"), false)
	c.ArmDeadline(session.StageKey)
}

// Dispatch routes one parsed frame according to the connection's current
// login stage, falling through to the post-login protocol engine once
// StageLoginDone is set.
func (h *Hub) Dispatch(ctx context.Context, c *session.Connection, frame string) {
	c.Touch()

	if wire.IsHeartbeat([]byte(frame)) {
		return
	}

	msg, err := message.Parse(frame)
	if err != nil {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	h.Metrics.RecordFrame("in", len(frame))

	if !c.HasStage(session.StageLoginDone) {
		h.handleLogin(c, msg)
		return
	}
	h.handlePostLogin(ctx, c, msg)
}

func (h *Hub) handleLogin(c *session.Connection, msg message.Message) {
	switch msg.Kind {
	case message.KindKey:
		h.handleKey(c, msg)
	case message.KindSupports:
		h.handleSupports(c, msg)
	case message.KindValidateNick:
		h.handleValidateNick(c, msg)
	case message.KindMyPass:
		h.handleMyPass(c, msg)
	case message.KindVersion:
		if !c.AdvanceStage(session.StageVersion) {
			c.CloseNow(session.CloseSyntaxError)
		}
	case message.KindBotINFO:
		h.handleBotINFO(c, msg)
	case message.KindMyINFO:
		h.handleMyINFO(c, msg)
	default:
		// Anything else before login-done is out of sequence.
		c.CloseNow(session.CloseSyntaxError)
	}
}

func (h *Hub) handleKey(c *session.Connection, msg message.Message) {
	if !c.AdvanceStage(session.StageKey) {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	key := msg.Fields["key"]
	if !wire.ValidateKey(c.LockChallenge(), key) {
		c.CloseNow(session.CloseInvalidKey)
		return
	}
	c.ArmDeadline(session.StageSupports)
}

func (h *Hub) handleSupports(c *session.Connection, msg message.Message) {
	if !c.HasStage(session.StageKey) || !c.AdvanceStage(session.StageSupports) {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	for _, tok := range strings.Fields(msg.Fields["tokens"]) {
		c.SetFeature(tok)
	}

	var ours []string
	for _, f := range recognizedSupports {
		ours = append(ours, f)
	}
	_ = c.Send([]byte("$Supports "+strings.Join(ours, " ")), false)

	if c.HasFeature("ZPipe0") || c.HasFeature("ZPipe") {
		// The token is only recorded as a feature: nothing here calls
		// wire.Writer.SetZPipeNegotiated, so outbound frames stay
		// uncompressed.
	}
	if c.HasFeature("NickRule") {
		nc := h.cfg.Nick
		_ = c.Send([]byte(fmt.Sprintf("$NickRule MinLen:%d$MaxLen:%d$Forbidden:%s$Prefix:%s",
			nc.MinLength, nc.MaxLength, nc.Forbidden, nc.RequiredPrefix)), false)
	}
	c.ArmDeadline(session.StageValidateNick)
}

func (h *Hub) handleValidateNick(c *session.Connection, msg message.Message) {
	if !c.HasStage(session.StageSupports) || !c.AdvanceStage(session.StageValidateNick) {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	nick := msg.Fields["nick"]

	reg, _ := h.Registry.Lookup(context.Background(), nick)
	reason, detail, ok := ValidateNick(nick, reg, h.Users, h.TempBans, h.cfg.Nick)
	if !ok {
		if c.HasFeature("NickRule") {
			_ = c.Send([]byte(fmt.Sprintf("$BadNick %s %s", reason, detail)), false)
		}
		_ = c.Send([]byte(fmt.Sprintf("<%s> %s|", h.cfg.Hub.Name, detail)), false)
		c.CloseNow(session.CloseBadNick)
		return
	}

	c.Nick = nick
	c.NickHash = identity.HashNick(nick)
	c.Reg = reg

	if h.cfg.Hub.MaxUsers > 0 && h.Users.Len() >= h.cfg.Hub.MaxUsers {
		c.CloseNow(session.CloseHubFull)
		return
	}

	if reg != nil && reg.PasswordHash != "" {
		_ = c.Send([]byte("$GetPass"), false)
		c.ArmDeadline(session.StagePassword)
		return
	}

	c.AdvanceStage(session.StagePassword) // auto-hello: no password required
	_ = c.Send([]byte("$Hello "+nick), false)
	c.ArmDeadline(session.StageMyINFO)
}

func (h *Hub) handleMyPass(c *session.Connection, msg message.Message) {
	if !c.HasStage(session.StageValidateNick) || !c.AdvanceStage(session.StagePassword) {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	if c.Reg == nil || !h.Registry.VerifyPassword(context.Background(), c.Reg, msg.Fields["pass"]) {
		until := nowFunc().Add(banDuration(h.cfg.Flood.PasswordBanMins))
		h.TempBans.BanIP(c.RemoteIP(), until, "bad password", abuse.BanPassword)
		h.Metrics.RecordTempBan(abuse.BanPassword.String())
		_ = c.Send([]byte("$BadPass|"), false)
		c.CloseNow(session.ClosePassword)
		return
	}
	c.ArmDeadline(session.StageMyINFO)
}

func (h *Hub) handleBotINFO(c *session.Connection, msg message.Message) {
	if !c.HasStage(session.StageValidateNick) || !c.AdvanceStage(session.StageBotINFO) {
		c.CloseNow(session.CloseSyntaxError)
		return
	}
	c.IsPinger = true
	reply := fmt.Sprintf("$HubINFO %s$%s$%d$%d$%s|", h.cfg.Hub.Name, h.cfg.Listen.Addr, h.Users.Len(), h.Users.TotalShare(), "vhub")
	_ = c.Send([]byte(reply), false)
	c.AdvanceStage(session.StageLoginDone)
	c.CloseNice(500, session.CloseNone)
}
