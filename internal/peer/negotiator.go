package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultCandidateQueueCap bounds the staging buffer for candidates that
// arrive before the remote description. Oldest entries are dropped past it.
const DefaultCandidateQueueCap = 32

// PeerConnection is the slice of *webrtc.PeerConnection the negotiator
// drives. Tests substitute a mock; everything else goes through pion.
type PeerConnection interface {
	SignalingState() webrtc.SignalingState
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	RemoteDescription() *webrtc.SessionDescription
	LocalDescription() *webrtc.SessionDescription
}

// SendFunc pushes one outbound signaling payload to the relay. Exactly one
// of sdp / candidate is set, matching the wire event kind.
type SendFunc func(kind string, sdp string, candidate *webrtc.ICECandidateInit) error

// Negotiator implements perfect negotiation for one call. The makingOffer
// and ignoreOffer flags are the only guard against re-entrant negotiation
// callbacks; every entry point takes the mutex and runs to completion.
type Negotiator struct {
	mu sync.Mutex

	pc     PeerConnection
	polite bool
	send   SendFunc

	makingOffer bool
	ignoreOffer bool

	queueCap int
	pending  []webrtc.ICECandidateInit
}

func NewNegotiator(pc PeerConnection, polite bool, send SendFunc) *Negotiator {
	return &Negotiator{
		pc:       pc,
		polite:   polite,
		send:     send,
		queueCap: DefaultCandidateQueueCap,
	}
}

func (n *Negotiator) Polite() bool { return n.polite }

// IgnoredLastOffer reports whether the most recent remote offer was dropped
// because this impolite side was mid-offer itself.
func (n *Negotiator) IgnoredLastOffer() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ignoreOffer
}

// OnNegotiationNeeded creates and sends a local offer unless an offer is
// already in flight or the connection is not stable, which would produce
// duplicate offers.
func (n *Negotiator) OnNegotiationNeeded() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.makingOffer || n.pc.SignalingState() != webrtc.SignalingStateStable {
		log.Debug().Str("module", "peer").Msg("negotiation needed while unstable, skipping")
		return nil
	}
	n.makingOffer = true
	defer func() { n.makingOffer = false }()

	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return n.send("offer", n.pc.LocalDescription().SDP, nil)
}

// HandleRemoteOffer applies an incoming offer and answers it. On glare the
// impolite side ignores the offer outright; the polite side rolls its own
// offer back first so the remote one wins.
func (n *Negotiator) HandleRemoteOffer(sdp string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	collision := n.makingOffer || n.pc.SignalingState() != webrtc.SignalingStateStable
	n.ignoreOffer = collision && !n.polite
	if n.ignoreOffer {
		log.Debug().Str("module", "peer").Msg("glare: impolite side ignoring remote offer")
		return nil
	}

	if collision {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
		if err := n.pc.SetLocalDescription(rollback); err != nil {
			return err
		}
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := n.pc.SetRemoteDescription(offer); err != nil {
		return err
	}
	n.flushPendingLocked()

	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := n.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	return n.send("answer", n.pc.LocalDescription().SDP, nil)
}

func (n *Negotiator) HandleRemoteAnswer(sdp string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	n.flushPendingLocked()
	return nil
}

// HandleRemoteCandidate stages candidates that arrive before the remote
// description and applies the rest directly. Application errors right
// after an ignored offer are expected and swallowed, such candidates are
// harmless no-ops.
func (n *Negotiator) HandleRemoteCandidate(ci webrtc.ICECandidateInit) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pc.RemoteDescription() == nil {
		if len(n.pending) >= n.queueCap {
			n.pending = n.pending[1:]
			log.Warn().Str("module", "peer").Msg("candidate queue full, dropping oldest")
		}
		n.pending = append(n.pending, ci)
		return nil
	}
	if err := n.pc.AddICECandidate(ci); err != nil {
		if n.ignoreOffer {
			return nil
		}
		return err
	}
	return nil
}

// SendLocalCandidate forwards a locally gathered candidate, best-effort.
func (n *Negotiator) SendLocalCandidate(ci webrtc.ICECandidateInit) {
	if err := n.send("ice-candidate", "", &ci); err != nil {
		log.Warn().Err(err).Str("module", "peer").Msg("candidate send failed")
	}
}

// PendingCandidates reports how many candidates wait for the remote
// description.
func (n *Negotiator) PendingCandidates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// flushPendingLocked applies the staged candidates in arrival order.
// Caller holds mu and has just set the remote description.
func (n *Negotiator) flushPendingLocked() {
	for _, ci := range n.pending {
		if err := n.pc.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "peer").Msg("staged candidate rejected")
		}
	}
	n.pending = nil
}
