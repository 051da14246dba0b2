package matchmaker

import (
	"errors"
	"time"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/com"
	"github.com/chainmeet/chainmeet/pkg/match"
)

func (h *Hub) route(usr *Session, in api.In) {
	switch in.T {
	case api.JoinQueue:
		if rq := api.Unwrap[api.JoinQueueRequest](in.Payload); rq != nil {
			h.HandleJoinQueue(usr, *rq)
		}
	case api.LeaveQueue:
		h.HandleLeaveQueue(usr)
	case api.NextMatch:
		h.HandleNextMatch(usr)
	case api.Signal:
		if rq := api.Unwrap[api.SignalRequest](in.Payload); rq != nil {
			h.HandleSignal(usr, *rq)
		}
	case api.ChatMessage:
		if rq := api.Unwrap[api.ChatMessageRequest](in.Payload); rq != nil {
			h.HandleChatMessage(usr, *rq)
		}
	default:
		usr.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}

func (h *Hub) HandleJoinQueue(usr *Session, rq api.JoinQueueRequest) {
	out, err := h.registry.JoinQueue(usr.Id(), rq.Role, rq.Interests, time.Now())
	h.apply(usr, out, err)
}

func (h *Hub) HandleLeaveQueue(usr *Session) {
	h.registry.LeaveQueue(usr.Id())
	h.syncStats()
}

func (h *Hub) HandleNextMatch(usr *Session) {
	out, err := h.registry.NextMatch(usr.Id(), time.Now())
	h.apply(usr, out, err)
}

// apply turns a registry outcome into session notifications.
func (h *Hub) apply(usr *Session, out match.Outcome, err error) {
	if err != nil {
		if errors.Is(err, match.ErrCooldown) {
			h.metrics.rejects.WithLabelValues("cooldown").Inc()
		}
		usr.Notify(api.Error, api.ErrorResponse{Message: err.Error()})
		return
	}
	if !out.Dropped.IsEmpty() {
		h.notify(out.Dropped, api.PartnerDisconnected, nil)
	}
	switch {
	case !out.Partner.IsEmpty():
		h.metrics.matches.Inc()
		usr.Notify(api.MatchFound, api.MatchFoundRequest{PartnerId: out.Partner.String()})
		h.notify(out.Partner, api.MatchFound, api.MatchFoundRequest{PartnerId: usr.Id().String()})
		usr.log.Info().Msgf("match %v ⇄ %v", usr.Id().Short(), out.Partner.Short())
	case out.Enqueued:
		usr.Notify(api.Searching, nil)
	}
	h.syncStats()
}

// HandleSignal forwards an opaque handshake envelope to its target.
// Unknown targets are dropped silently: the relay is best effort and
// never confirms delivery. It also does not check that the sender is
// the target's current partner; the receiving peer controller does.
func (h *Hub) HandleSignal(usr *Session, rq api.SignalRequest) {
	target, err := com.UidFrom(rq.Target)
	if err != nil {
		return
	}
	h.metrics.signals.Inc()
	h.notify(target, api.SignalNotify, api.SignalNotice{
		Sender:    usr.Id().String(),
		Kind:      rq.Kind,
		SDP:       rq.SDP,
		Candidate: rq.Candidate,
	})
}

// HandleChatMessage is a best-effort text relay, same trust model as
// the signal relay.
func (h *Hub) HandleChatMessage(usr *Session, rq api.ChatMessageRequest) {
	target, err := com.UidFrom(rq.To)
	if err != nil {
		return
	}
	h.notify(target, api.ChatNotify, api.ChatMessageNotice{Message: rq.Message, From: usr.Id().String()})
}
