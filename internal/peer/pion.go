package peer

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// RTCConfig builds the pion configuration for the given STUN servers.
// NAT traversal itself is ICE's problem, not ours.
func RTCConfig(stunURLs []string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunURLs},
		},
	}
}

// MediaSession owns the pion peer connection for one call and the
// negotiator driving it. One per active call, discarded when it ends.
type MediaSession struct {
	pc  *webrtc.PeerConnection
	neg *Negotiator

	onClosed func()
}

// NewMediaSession opens a peer connection with the transceivers the call's
// media kind requires. Failure here is the device/transport failure path:
// the caller aborts call setup, there is no retry.
func NewMediaSession(cfg webrtc.Configuration, kind domain.MediaKind, polite bool, send SendFunc, onClosed func()) (*MediaSession, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if kind == domain.MediaVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	s := &MediaSession{
		pc:       pc,
		neg:      NewNegotiator(pc, polite, send),
		onClosed: onClosed,
	}

	pc.OnNegotiationNeeded(func() {
		if err := s.neg.OnNegotiationNeeded(); err != nil {
			log.Error().Err(err).Str("module", "peer").Msg("negotiation failed")
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			s.neg.SendLocalCandidate(c.ToJSON())
		}
	})

	pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		log.Info().Str("module", "peer").Str("ice_state", st.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Info().Str("module", "peer").Str("peer_connection_state", st.String()).Msg("Peer state")
		if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
			if s.onClosed != nil {
				s.onClosed()
			}
		}
	})

	return s, nil
}

func (s *MediaSession) Negotiator() *Negotiator { return s.neg }

func (s *MediaSession) Close() {
	if err := s.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("close error")
	}
}
