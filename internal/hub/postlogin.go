package hub

import (
	"context"

	"vhub/internal/message"
	"vhub/internal/session"
)

// handlePostLogin routes a frame from a fully logged-in connection to the
// protocol engine handler for its command kind.
func (h *Hub) handlePostLogin(ctx context.Context, c *session.Connection, msg message.Message) {
	h.Metrics.RecordCommand(msg.Command)

	switch msg.Kind {
	case message.KindChat, message.KindUnknown:
		h.handleChat(c, msg)
	case message.KindTo:
		h.handleTo(c, msg)
	case message.KindMCTo:
		h.handleMCTo(c, msg)
	case message.KindMyINFO:
		h.handleMyINFO(c, msg)
	case message.KindConnectToMe:
		h.handleConnectToMe(c, msg)
	case message.KindRevConnectToMe:
		h.handleRevConnectToMe(c, msg)
	case message.KindSearch:
		h.handleSearch(c, msg)
	case message.KindSA:
		h.handleSA(c, msg)
	case message.KindSP:
		h.handleSP(c, msg)
	case message.KindSR:
		h.handleSR(c, msg)
	case message.KindKick:
		h.handleKick(c, msg)
	case message.KindOpForceMove:
		h.handleOpForceMove(c, msg)
	case message.KindUserIP:
		h.handleUserIPRequest(c, msg)
	case message.KindGetINFO:
		h.handleGetINFO(c, msg)
	case message.KindQuit:
		// Clients don't send Quit; disconnect is detected by the listener
		// loop's read error and handled via Disconnect below.
	default:
		// Unrecognized post-login command: ignored rather than closed.
	}
}

// Disconnect tears down a connection's User (if promoted) and removes
// bookkeeping, called by the listener loop once the socket's read loop
// exits for any reason.
func (h *Hub) Disconnect(c *session.Connection) {
	h.Untrack(c)
	if c.User != nil {
		h.announceQuit(c.User)
	}
}
