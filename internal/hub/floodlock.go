package hub

import (
	"fmt"

	"vhub/internal/abuse"
	"vhub/internal/identity"
)

// checkHubFlood runs kind's hub-wide flood bucket and reports the locked
// and unlocked transitions to every connected operator, the way
// original_source's CheckProtoFloodAll reports to the operator chat. It
// returns whether the event is admitted.
func (h *Hub) checkHubFlood(kind abuse.Kind) bool {
	admitted, transition := h.HubFlood.Check(kind, nowFunc())
	switch transition {
	case abuse.TransitionLocked:
		h.notifyOpFlood(fmt.Sprintf("Protocol command has been locked due to detection of flood from all: %s", kind))
	case abuse.TransitionUnlocked:
		h.notifyOpFlood(fmt.Sprintf("Protocol command has been unlocked after stopped flood from all: %s", kind))
	}
	if !admitted {
		h.Metrics.RecordFloodAction(kind.String(), "hub-locked")
	}
	return admitted
}

// notifyOpFlood sends an operator-chat line to every connected operator
// and logs it, mirroring original_source's ReportUserToOpchat.
func (h *Hub) notifyOpFlood(text string) {
	h.sendToAllWithClass(fmt.Sprintf("<%s> %s|", h.cfg.Hub.Name, text), identity.ClassOp, identity.ClassMaster, true)
	h.log.WithField("component", "abuse").Info(text)
}
