package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

// CallState is the lifecycle state of a call session.
// Keep values stable because they travel over the wire.
type CallState string

const (
	CallRinging   CallState = "ringing"
	CallAccepted  CallState = "accepted"
	CallConnected CallState = "connected"
	CallEnded     CallState = "ended"
)

// EndReason says why a session reached CallEnded.
type EndReason string

const (
	EndHangup       EndReason = "hangup"
	EndRejected     EndReason = "rejected"
	EndCancelled    EndReason = "cancelled"
	EndTimeout      EndReason = "timeout"
	EndDisconnected EndReason = "disconnected"
	EndMediaFailed  EndReason = "media_failed"
)

type CallID string

// NewCallID combines both identities with a timestamp and a random suffix
// so concurrent calls can never collide and ids are not guessable.
func NewCallID(caller, callee Identity, now time.Time) CallID {
	return CallID(fmt.Sprintf("%s:%s:%d:%s", caller, callee, now.UnixNano(), uuid.NewString()))
}

func (id CallID) String() string { return string(id) }

// ErrBadTransition is returned when a session is asked to re-enter a state
// its lifecycle has already passed. CallEnded is absorbing.
type ErrBadTransition struct {
	From, To CallState
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("call transition %s -> %s not allowed", e.From, e.To)
}

// CallSession is the authoritative record of one call attempt.
// All mutation goes through the Mark* methods; the coordinator serializes
// access, the session itself holds no lock.
type CallSession struct {
	ID     CallID    `json:"call_id"`
	Caller Identity  `json:"caller"`
	Callee Identity  `json:"callee"`
	Kind   MediaKind `json:"media_kind"`
	State  CallState `json:"state"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndedBy     Identity   `json:"ended_by,omitempty"`
	Reason      EndReason  `json:"reason,omitempty"`
}

func NewCallSession(caller, callee Identity, kind MediaKind, now time.Time) *CallSession {
	return &CallSession{
		ID:        NewCallID(caller, callee, now),
		Caller:    caller,
		Callee:    callee,
		Kind:      kind,
		State:     CallRinging,
		CreatedAt: now,
	}
}

func (s *CallSession) Active() bool { return s.State != CallEnded }

func (s *CallSession) HasParticipant(id Identity) bool {
	return s.Caller == id || s.Callee == id
}

// Peer returns the other participant, or "" if id is not part of the call.
func (s *CallSession) Peer(id Identity) Identity {
	switch id {
	case s.Caller:
		return s.Callee
	case s.Callee:
		return s.Caller
	}
	return ""
}

func (s *CallSession) MarkAccepted(now time.Time) error {
	if s.State != CallRinging {
		return &ErrBadTransition{From: s.State, To: CallAccepted}
	}
	s.State = CallAccepted
	s.AcceptedAt = &now
	return nil
}

func (s *CallSession) MarkConnected(now time.Time) error {
	if s.State != CallAccepted {
		return &ErrBadTransition{From: s.State, To: CallConnected}
	}
	s.State = CallConnected
	s.ConnectedAt = &now
	return nil
}

// MarkEnded is valid from any non-terminal state. Ending an already ended
// session is reported so callers can treat it as a no-op.
func (s *CallSession) MarkEnded(by Identity, reason EndReason, now time.Time) error {
	if s.State == CallEnded {
		return &ErrBadTransition{From: CallEnded, To: CallEnded}
	}
	s.State = CallEnded
	s.EndedAt = &now
	s.EndedBy = by
	s.Reason = reason
	return nil
}
