package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// failTo surfaces a policy rejection to the requesting connection only.
// Other tabs of the same identity did not ask, they stay quiet.
func (ctl *Controller) failTo(c *wsConn, callID domain.CallID, err error) {
	var failure *domain.CallFailure
	if !errors.As(err, &failure) {
		log.Error().Err(err).Str("module", "signal").Msg("unexpected call error")
		return
	}
	ctl.sendJSON(c, core.CallFailedEvent{
		Type:   core.TypeCallFailed,
		Code:   failure.Code,
		Reason: failure.Detail,
		CallID: callID,
	})
}

func (ctl *Controller) handleCallRequest(id domain.Identity, conn *wsConn, data []byte) {
	type requestPayload struct {
		Type string `json:"type"`
		To   string `json:"to"`
		Kind string `json:"media_kind"`
	}
	var p requestPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-request payload")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}
	callee, err := domain.NewIdentity(p.To)
	if err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "bad_payload",
		})
		return
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("identity", string(id)).Msg("call-request rate limited")
		ctl.sendJSON(conn, map[string]any{
			"type":  "error",
			"error": "rate_limited",
		})
		return
	}

	if _, err := ctl.Coord.RequestCall(id, callee, domain.MediaKind(p.Kind)); err != nil {
		ctl.failTo(conn, "", err)
	}
}

func (ctl *Controller) handleCallAccepted(id domain.Identity, conn *wsConn, data []byte) {
	type acceptPayload struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
	}
	var p acceptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-accepted payload")
		return
	}
	if _, err := ctl.Coord.AcceptCall(domain.CallID(p.CallID), id); err != nil {
		ctl.failTo(conn, domain.CallID(p.CallID), err)
	}
}

func (ctl *Controller) handleCallRejected(id domain.Identity, conn *wsConn, data []byte) {
	type rejectPayload struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
	}
	var p rejectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-rejected payload")
		return
	}
	if err := ctl.Coord.RejectCall(domain.CallID(p.CallID), id); err != nil {
		ctl.failTo(conn, domain.CallID(p.CallID), err)
	}
}

func (ctl *Controller) handleCallEnded(id domain.Identity, conn *wsConn, data []byte) {
	type endPayload struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
	}
	var p endPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad call-ended payload")
		return
	}
	if err := ctl.Coord.EndCall(domain.CallID(p.CallID), id); err != nil {
		ctl.failTo(conn, domain.CallID(p.CallID), err)
	}
}
