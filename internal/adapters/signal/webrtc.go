package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// handleSignalRelay forwards offer/answer/ice-candidate frames through the
// relay. The server never opens its own peer connection; media flows
// directly between the two participants.
func (ctl *Controller) handleSignalRelay(id domain.Identity, kind string, data []byte) {
	type signalPayload struct {
		Type      string          `json:"type"`
		To        string          `json:"to"`
		SDP       string          `json:"sdp,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
	}
	var p signalPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad signal payload")
		return
	}
	to, err := domain.NewIdentity(p.To)
	if err != nil {
		log.Debug().Str("module", "signal").Str("kind", kind).Msg("signal without target, dropping")
		return
	}

	ctl.Relay.Forward(id, to, kind, p.SDP, p.Candidate)
}
