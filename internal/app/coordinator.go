package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// session pairs the call record with its pending ring timer so accepting or
// rejecting can cancel the timeout before it fires.
type session struct {
	call      *domain.CallSession
	ringTimer core.Timer
}

// Coordinator owns the authoritative state of every in-flight call. All
// state lives behind one mutex; no lock is released in the middle of a
// transition, so observers never see a half-applied state. Calls are not
// shared across processes, a single node owns everything it tracks.
type Coordinator struct {
	presence *Presence
	notifier core.Notifier
	clock    core.Clock
	names    core.NameLookup

	ringTimeout time.Duration
	staleAfter  time.Duration

	mu         sync.Mutex
	sessions   map[domain.CallID]*session
	byIdentity map[domain.Identity]domain.CallID
}

func NewCoordinator(presence *Presence, clock core.Clock, names core.NameLookup, ringTimeout, staleAfter time.Duration) *Coordinator {
	if names == nil {
		names = func(id domain.Identity) string { return string(id) }
	}
	return &Coordinator{
		presence:    presence,
		notifier:    presence,
		clock:       clock,
		names:       names,
		ringTimeout: ringTimeout,
		staleAfter:  staleAfter,
		sessions:    make(map[domain.CallID]*session),
		byIdentity:  make(map[domain.Identity]domain.CallID),
	}
}

// RequestCall starts a RINGING session from caller to callee and schedules
// the ring timeout. Whoever grabs the busy slot first wins; a simultaneous
// cross-call from the other side is rejected with USER_BUSY.
func (c *Coordinator) RequestCall(caller, callee domain.Identity, kind domain.MediaKind) (*domain.CallSession, error) {
	if caller == callee {
		return nil, domain.NewCallFailure(domain.FailSelfCall, "cannot call yourself")
	}
	if !kind.Valid() {
		return nil, domain.NewCallFailure(domain.FailInvalidCall, "unknown media kind")
	}
	if !c.presence.Online(callee) {
		return nil, domain.NewCallFailure(domain.FailUserOffline, string(callee)+" is offline")
	}

	c.mu.Lock()
	if c.busyLocked(caller) || c.busyLocked(callee) {
		c.mu.Unlock()
		return nil, domain.NewCallFailure(domain.FailUserBusy, "participant already in a call")
	}
	call := domain.NewCallSession(caller, callee, kind, c.clock.Now())
	s := &session{call: call}
	s.ringTimer = c.clock.AfterFunc(c.ringTimeout, func() { c.onRingTimeout(call.ID) })
	c.sessions[call.ID] = s
	c.byIdentity[caller] = call.ID
	c.byIdentity[callee] = call.ID
	snapshot := *call
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("call_id", string(call.ID)).Str("caller", string(caller)).Str("callee", string(callee)).Str("kind", string(kind)).Msg("call ringing")

	c.notifier.SendTo(callee, core.CallRequestEvent{
		Type:     core.TypeCallRequest,
		From:     caller,
		FromName: c.names(caller),
		CallID:   call.ID,
		Kind:     kind,
	})
	c.notifier.SendTo(caller, core.CallInitiatedEvent{
		Type:   core.TypeCallInitiated,
		To:     callee,
		CallID: call.ID,
		Kind:   kind,
	})
	return &snapshot, nil
}

// AcceptCall moves a RINGING session to ACCEPTED and cancels the ring timer
// so a late timeout can never fire a duplicate failure.
func (c *Coordinator) AcceptCall(callID domain.CallID, by domain.Identity) (*domain.CallSession, error) {
	c.mu.Lock()
	s, ok := c.sessions[callID]
	if !ok || s.call.Callee != by || s.call.State != domain.CallRinging {
		c.mu.Unlock()
		return nil, domain.NewCallFailure(domain.FailInvalidCall, "no ringing call to accept")
	}
	s.ringTimer.Stop()
	if err := s.call.MarkAccepted(c.clock.Now()); err != nil {
		c.mu.Unlock()
		return nil, domain.NewCallFailure(domain.FailInvalidCall, err.Error())
	}
	snapshot := *s.call
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("call_id", string(callID)).Str("by", string(by)).Msg("call accepted")

	c.notifier.SendTo(snapshot.Caller, core.CallAcceptedEvent{
		Type:   core.TypeCallAccepted,
		From:   by,
		CallID: callID,
		Kind:   snapshot.Kind,
	})
	return &snapshot, nil
}

// RejectCall ends a ringing call from the callee side. Rejecting a call
// that already ended is a no-op, not an error.
func (c *Coordinator) RejectCall(callID domain.CallID, by domain.Identity) error {
	return c.endCall(callID, by, domain.EndRejected)
}

// EndCall is valid from any non-terminal state. A caller hanging up before
// the callee picked up counts as a cancel.
func (c *Coordinator) EndCall(callID domain.CallID, by domain.Identity) error {
	return c.endCall(callID, by, domain.EndHangup)
}

func (c *Coordinator) endCall(callID domain.CallID, by domain.Identity, reason domain.EndReason) error {
	c.mu.Lock()
	s, ok := c.sessions[callID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if !s.call.HasParticipant(by) {
		c.mu.Unlock()
		return domain.NewCallFailure(domain.FailInvalidCall, "not a participant")
	}
	if s.call.State == domain.CallEnded {
		c.mu.Unlock()
		return nil
	}
	if reason == domain.EndHangup && s.call.State == domain.CallRinging && by == s.call.Caller {
		reason = domain.EndCancelled
	}
	s.ringTimer.Stop()
	s.call.MarkEnded(by, reason, c.clock.Now())
	peer := s.call.Peer(by)
	c.dropLocked(s.call)
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("call_id", string(callID)).Str("by", string(by)).Str("reason", string(reason)).Msg("call ended")

	c.notifier.SendTo(peer, core.CallEndedEvent{
		Type:   core.TypeCallEnded,
		From:   by,
		CallID: callID,
		Reason: reason,
	})
	return nil
}

// MarkConnected is triggered by the relay when it observes the answer
// exchange. Out-of-order triggers (already connected, ended) are dropped.
func (c *Coordinator) MarkConnected(callID domain.CallID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[callID]
	if !ok {
		return domain.NewCallFailure(domain.FailInvalidCall, "unknown call")
	}
	if err := s.call.MarkConnected(c.clock.Now()); err != nil {
		var bad *domain.ErrBadTransition
		if errors.As(err, &bad) && bad.From == domain.CallConnected {
			// renegotiation answer on an already connected call
			return nil
		}
		return err
	}
	log.Info().Str("module", "app.coordinator").Str("call_id", string(callID)).Msg("call connected")
	return nil
}

// HandleDisconnect force-ends the session of an identity whose last
// connection just dropped. The counterpart gets exactly one call-ended.
func (c *Coordinator) HandleDisconnect(id domain.Identity) {
	c.mu.Lock()
	callID, ok := c.byIdentity[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	s := c.sessions[callID]
	s.ringTimer.Stop()
	wasRinging := s.call.State == domain.CallRinging
	s.call.MarkEnded(id, domain.EndDisconnected, c.clock.Now())
	peer := s.call.Peer(id)
	c.dropLocked(s.call)
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("call_id", string(callID)).Str("identity", string(id)).Msg("call ended by disconnect")

	if wasRinging && id == s.call.Callee {
		// callee vanished before answering, the caller sees a failure
		c.notifier.SendTo(peer, core.CallFailedEvent{
			Type:   core.TypeCallFailed,
			Code:   domain.FailUserDisconnected,
			CallID: callID,
		})
		return
	}
	c.notifier.SendTo(peer, core.CallEndedEvent{
		Type:   core.TypeCallEnded,
		From:   id,
		CallID: callID,
		Reason: domain.EndDisconnected,
	})
}

// SessionFor returns a copy of the active session id participates in.
func (c *Coordinator) SessionFor(id domain.Identity) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	callID, ok := c.byIdentity[id]
	if !ok {
		return domain.CallSession{}, false
	}
	return *c.sessions[callID].call, true
}

// SessionBetween returns a copy of the active session between a and b.
func (c *Coordinator) SessionBetween(a, b domain.Identity) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	callID, ok := c.byIdentity[a]
	if !ok {
		return domain.CallSession{}, false
	}
	s := c.sessions[callID]
	if !s.call.HasParticipant(b) {
		return domain.CallSession{}, false
	}
	return *s.call, true
}

// ActiveCount reports how many non-ended sessions the coordinator tracks.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Coordinator) onRingTimeout(callID domain.CallID) {
	c.mu.Lock()
	s, ok := c.sessions[callID]
	if !ok || s.call.State != domain.CallRinging {
		c.mu.Unlock()
		return
	}
	s.call.MarkEnded("", domain.EndTimeout, c.clock.Now())
	caller, callee := s.call.Caller, s.call.Callee
	c.dropLocked(s.call)
	c.mu.Unlock()

	log.Info().Str("module", "app.coordinator").Str("call_id", string(callID)).Msg("call timed out")

	c.notifier.SendTo(caller, core.CallFailedEvent{
		Type:   core.TypeCallFailed,
		Code:   domain.FailTimeout,
		Reason: "call was not answered",
		CallID: callID,
	})
	c.notifier.SendTo(callee, core.CallEndedEvent{
		Type:   core.TypeCallEnded,
		CallID: callID,
		Reason: domain.EndTimeout,
	})
}

// Sweep periodically force-ends RINGING sessions older than staleAfter.
// Safety net for clients that vanished without a clean disconnect; it
// bounds the worst-case session leak to one sweep interval.
func (c *Coordinator) Sweep(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			c.sweepOnce()
		}
	}
}

func (c *Coordinator) sweepOnce() {
	now := c.clock.Now()
	c.mu.Lock()
	var stale []domain.CallID
	for id, s := range c.sessions {
		if s.call.State == domain.CallRinging && now.Sub(s.call.CreatedAt) > c.staleAfter {
			stale = append(stale, id)
		}
	}
	c.mu.Unlock()

	for _, id := range stale {
		log.Warn().Str("module", "app.coordinator").Str("call_id", string(id)).Msg("sweeping stale ringing call")
		c.onRingTimeout(id)
	}
}

// dropLocked removes an ended session from both indexes. Caller holds mu.
func (c *Coordinator) dropLocked(call *domain.CallSession) {
	delete(c.sessions, call.ID)
	if c.byIdentity[call.Caller] == call.ID {
		delete(c.byIdentity, call.Caller)
	}
	if c.byIdentity[call.Callee] == call.ID {
		delete(c.byIdentity, call.Callee)
	}
}

func (c *Coordinator) busyLocked(id domain.Identity) bool {
	_, ok := c.byIdentity[id]
	return ok
}
