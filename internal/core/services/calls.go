package services

import (
	"context"
	"log/slog"

	"github.com/veerababu08/sahtalk-backend/internal/app/registry"
	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

// CallRelay forwards call-signaling payloads between exactly two live
// sessions. It never inspects offer/answer/candidate contents; the only job
// is routing to the current live session of the target user, which is why
// the session registry's supersession rules carry the weight here.
type CallRelay struct {
	log      *slog.Logger
	sessions *registry.SessionRegistry
}

func NewCallRelay(log *slog.Logger, sessions *registry.SessionRegistry) *CallRelay {
	return &CallRelay{log: log, sessions: sessions}
}

// HandleCallUser forwards an offer. An offline target is reported back to
// the caller; every later signaling step just drops instead.
func (c *CallRelay) HandleCallUser(ctx context.Context, caller contracts.Client, ev domain.CallUserEvent) {
	target, ok := c.sessions.Resolve(ev.To)
	if !ok {
		c.log.InfoContext(ctx, "calls - call user - target offline", logging.User(ev.To))
		frame, err := domain.MarshalServerEvent(domain.EventCallFailed, domain.CallFailed{Reason: domain.CallFailedOffline})
		if err != nil {
			return
		}
		_ = caller.Send(ctx, frame)
		return
	}
	frame, err := domain.MarshalServerEvent(domain.EventIncomingCall, domain.IncomingCall{
		From:     caller.SessionID(),
		Offer:    ev.Offer,
		CallType: ev.CallType,
	})
	if err != nil {
		return
	}
	if err := target.Send(ctx, frame); err != nil {
		c.log.ErrorContext(ctx, "calls - call user - deliver failed", logging.User(ev.To), logging.Err(err))
	}
}

// HandleAnswerCall forwards the answer. Offline target drops silently; the
// caller learns via its own timeout.
func (c *CallRelay) HandleAnswerCall(ctx context.Context, callee contracts.Client, ev domain.AnswerCallEvent) {
	target, ok := c.sessions.Resolve(ev.To)
	if !ok {
		return
	}
	frame, err := domain.MarshalServerEvent(domain.EventCallAccepted, domain.CallAccepted{
		From:   callee.SessionID(),
		Answer: ev.Answer,
	})
	if err != nil {
		return
	}
	if err := target.Send(ctx, frame); err != nil {
		c.log.ErrorContext(ctx, "calls - answer call - deliver failed", logging.User(ev.To), logging.Err(err))
	}
}

// HandleICECandidate forwards one candidate, or drops.
func (c *CallRelay) HandleICECandidate(ctx context.Context, ev domain.ICECandidateEvent) {
	target, ok := c.sessions.Resolve(ev.To)
	if !ok {
		return
	}
	frame, err := domain.MarshalServerEvent(domain.EventICECandidate, domain.ICECandidatePayload{Candidate: ev.Candidate})
	if err != nil {
		return
	}
	_ = target.Send(ctx, frame)
}

// HandleEndCall tells the target the call is over, or drops.
func (c *CallRelay) HandleEndCall(ctx context.Context, ev domain.EndCallEvent) {
	target, ok := c.sessions.Resolve(ev.To)
	if !ok {
		return
	}
	frame, err := domain.MarshalServerEvent(domain.EventCallEnded, domain.CallEnded{})
	if err != nil {
		return
	}
	_ = target.Send(ctx, frame)
}
