package core

import (
	"encoding/json"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// Wire event types. Values are the protocol surface shared with the web
// client, keep them stable.
const (
	TypeCallRequest   = "call-request"
	TypeCallInitiated = "call-initiated"
	TypeCallAccepted  = "call-accepted"
	TypeCallRejected  = "call-rejected"
	TypeCallEnded     = "call-ended"
	TypeCallFailed    = "call-failed"
	TypeOffer         = "offer"
	TypeAnswer        = "answer"
	TypeICECandidate  = "ice-candidate"
	TypePresence      = "presence"
	TypeError         = "error"
)

// Envelope carries just enough to dispatch an incoming frame.
type Envelope struct {
	Type string `json:"type"`
}

// CallRequestEvent notifies the callee's connections about an incoming call.
type CallRequestEvent struct {
	Type     string           `json:"type"`
	From     domain.Identity  `json:"from"`
	FromName string           `json:"from_name,omitempty"`
	CallID   domain.CallID    `json:"call_id"`
	Kind     domain.MediaKind `json:"media_kind"`
}

// CallInitiatedEvent acknowledges the caller that ringing started.
type CallInitiatedEvent struct {
	Type   string           `json:"type"`
	To     domain.Identity  `json:"to"`
	CallID domain.CallID    `json:"call_id"`
	Kind   domain.MediaKind `json:"media_kind"`
}

type CallAcceptedEvent struct {
	Type   string           `json:"type"`
	From   domain.Identity  `json:"from"`
	CallID domain.CallID    `json:"call_id"`
	Kind   domain.MediaKind `json:"media_kind"`
}

type CallEndedEvent struct {
	Type   string           `json:"type"`
	From   domain.Identity  `json:"from,omitempty"`
	CallID domain.CallID    `json:"call_id"`
	Reason domain.EndReason `json:"reason,omitempty"`
}

type CallFailedEvent struct {
	Type   string          `json:"type"`
	Code   domain.FailCode `json:"code"`
	Reason string          `json:"reason,omitempty"`
	CallID domain.CallID   `json:"call_id,omitempty"`
}

// SignalEvent relays an SDP offer/answer or an ICE candidate between the
// two participants of a validated session. Payload stays opaque here.
type SignalEvent struct {
	Type      string          `json:"type"`
	From      domain.Identity `json:"from,omitempty"`
	To        domain.Identity `json:"to,omitempty"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PresenceEvent struct {
	Type     string          `json:"type"`
	Identity domain.Identity `json:"identity"`
	Online   bool            `json:"online"`
}

func NewPresenceEvent(id domain.Identity, online bool) PresenceEvent {
	return PresenceEvent{Type: TypePresence, Identity: id, Online: online}
}
