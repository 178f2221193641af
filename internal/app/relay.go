package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// Relay forwards offer/answer/ice-candidate payloads between the two
// participants of a validated call. It only reads the coordinator's state;
// the single transition it triggers is MarkConnected on an observed answer.
type Relay struct {
	coord    *Coordinator
	notifier core.Notifier
}

func NewRelay(coord *Coordinator, notifier core.Notifier) *Relay {
	return &Relay{coord: coord, notifier: notifier}
}

// Forward relays one signaling payload from -> to. Payloads outside an
// accepted or connected session are dropped silently: nothing may inject
// SDP or candidates without an authorized call. Reports delivery.
func (r *Relay) Forward(from, to domain.Identity, kind string, sdp string, candidate json.RawMessage) bool {
	sess, ok := r.coord.SessionBetween(from, to)
	if !ok || (sess.State != domain.CallAccepted && sess.State != domain.CallConnected) {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Str("kind", kind).Msg("dropping signal outside an active call")
		return false
	}

	if kind == core.TypeAnswer {
		if err := r.coord.MarkConnected(sess.ID); err != nil {
			log.Debug().Str("module", "app.relay").Str("call_id", string(sess.ID)).Err(err).Msg("answer on non-accepted call")
		}
	}

	sent := r.notifier.SendTo(to, core.SignalEvent{
		Type:      kind,
		From:      from,
		SDP:       sdp,
		Candidate: candidate,
	})
	return sent > 0
}
