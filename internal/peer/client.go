package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// Client is one signaling endpoint: the headless counterpart of a browser
// tab. It keeps at most one active call and one media session at a time.
type Client struct {
	serverHost string
	identity   domain.Identity
	stunURLs   []string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	callID domain.CallID
	remote domain.Identity
	media  *MediaSession

	// AutoAccept answers any incoming call; the default rejects.
	AutoAccept bool
	// OnCallEnded fires once per terminated call, after local cleanup.
	OnCallEnded func(callID domain.CallID, reason string)
	// OnPresence receives presence broadcasts.
	OnPresence func(identity domain.Identity, online bool)
}

func NewClient(host string, identity domain.Identity, stunURLs []string) *Client {
	return &Client{
		serverHost: host,
		identity:   identity,
		stunURLs:   stunURLs,
	}
}

func (c *Client) Identity() domain.Identity { return c.identity }

// Dial connects and authenticates. The token rides the query string since
// browser WebSocket clients cannot set an Authorization header either.
func (c *Client) Dial(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: 45 * time.Second}
	url := fmt.Sprintf("ws://%s/api/ws/signal?token=%s", c.serverHost, c.identity)
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.conn = conn
	log.Info().Str("module", "peer").Str("identity", string(c.identity)).Msg("connected to signaling server")
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.media != nil {
		c.media.Close()
		c.media = nil
	}
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Call asks the server to ring remote. The session starts once the server
// acks with call-initiated.
func (c *Client) Call(to domain.Identity, kind domain.MediaKind) error {
	return c.sendJSON(map[string]string{
		"type":       core.TypeCallRequest,
		"to":         string(to),
		"media_kind": string(kind),
	})
}

// HangUp ends the active call, if any.
func (c *Client) HangUp() error {
	c.mu.Lock()
	callID := c.callID
	c.mu.Unlock()
	if callID == "" {
		return nil
	}
	err := c.sendJSON(map[string]string{
		"type":    core.TypeCallEnded,
		"call_id": string(callID),
	})
	c.teardown("hangup")
	return err
}

// Run reads events until the context ends or the transport drops.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleEvent(data)
	}
}

func (c *Client) handleEvent(data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("bad server frame")
		return
	}

	switch env.Type {
	case core.TypeCallRequest:
		c.handleIncoming(data)
	case core.TypeCallInitiated:
		c.handleInitiated(data)
	case core.TypeCallAccepted:
		c.handleAccepted(data)
	case core.TypeCallFailed:
		var ev core.CallFailedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			log.Warn().Str("module", "peer").Str("code", string(ev.Code)).Str("reason", ev.Reason).Msg("call failed")
			c.teardown(string(ev.Code))
		}
	case core.TypeCallEnded:
		var ev core.CallEndedEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.teardown(string(ev.Reason))
		}
	case core.TypeOffer:
		c.handleOffer(data)
	case core.TypeAnswer:
		c.handleAnswer(data)
	case core.TypeICECandidate:
		c.handleCandidate(data)
	case core.TypePresence:
		var ev core.PresenceEvent
		if err := json.Unmarshal(data, &ev); err == nil && c.OnPresence != nil {
			c.OnPresence(ev.Identity, ev.Online)
		}
	default:
		log.Debug().Str("module", "peer").Str("type", env.Type).Msg("unhandled event")
	}
}

func (c *Client) handleIncoming(data []byte) {
	var ev core.CallRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	if !c.AutoAccept {
		log.Info().Str("module", "peer").Str("from", string(ev.From)).Msg("rejecting incoming call")
		_ = c.sendJSON(map[string]string{
			"type":    core.TypeCallRejected,
			"call_id": string(ev.CallID),
		})
		return
	}

	log.Info().Str("module", "peer").Str("from", string(ev.From)).Str("kind", string(ev.Kind)).Msg("accepting incoming call")
	if err := c.setupMedia(ev.CallID, ev.From, ev.Kind); err != nil {
		return
	}
	_ = c.sendJSON(map[string]string{
		"type":    core.TypeCallAccepted,
		"call_id": string(ev.CallID),
	})
}

func (c *Client) handleInitiated(data []byte) {
	var ev core.CallInitiatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	c.mu.Lock()
	c.callID = ev.CallID
	c.remote = ev.To
	c.mu.Unlock()
	log.Info().Str("module", "peer").Str("to", string(ev.To)).Str("call_id", string(ev.CallID)).Msg("ringing")
}

func (c *Client) handleAccepted(data []byte) {
	var ev core.CallAcceptedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	// caller side: the callee picked up, open the media path
	if err := c.setupMedia(ev.CallID, ev.From, ev.Kind); err != nil {
		return
	}
	log.Info().Str("module", "peer").Str("call_id", string(ev.CallID)).Msg("call accepted, negotiating")
}

// setupMedia opens the peer connection for the accepted call. A device or
// transport failure here aborts the call: we hang up and report, no retry.
func (c *Client) setupMedia(callID domain.CallID, remote domain.Identity, kind domain.MediaKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.media != nil {
		c.media.Close()
	}
	c.callID = callID
	c.remote = remote

	polite := Polite(c.identity, remote)
	send := func(kind string, sdp string, candidate *webrtc.ICECandidateInit) error {
		return c.sendSignal(remote, kind, sdp, candidate)
	}
	onClosed := func() { c.teardown("media_closed") }

	media, err := NewMediaSession(RTCConfig(c.stunURLs), kind, polite, send, onClosed)
	if err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("media setup failed, aborting call")
		c.callID = ""
		c.remote = ""
		_ = c.sendJSON(map[string]string{
			"type":    core.TypeCallEnded,
			"call_id": string(callID),
		})
		return err
	}
	c.media = media
	return nil
}

func (c *Client) handleOffer(data []byte) {
	var ev core.SignalEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	neg := c.negotiator()
	if neg == nil {
		log.Debug().Str("module", "peer").Msg("offer without media session, dropping")
		return
	}
	if err := neg.HandleRemoteOffer(ev.SDP); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("remote offer failed")
	}
}

func (c *Client) handleAnswer(data []byte) {
	var ev core.SignalEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	neg := c.negotiator()
	if neg == nil {
		return
	}
	if err := neg.HandleRemoteAnswer(ev.SDP); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("remote answer failed")
	}
}

func (c *Client) handleCandidate(data []byte) {
	var ev core.SignalEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	neg := c.negotiator()
	if neg == nil {
		return
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(ev.Candidate, &ci); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("bad candidate payload")
		return
	}
	if err := neg.HandleRemoteCandidate(ci); err != nil {
		log.Warn().Err(err).Str("module", "peer").Msg("candidate rejected")
	}
}

func (c *Client) negotiator() *Negotiator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.media == nil {
		return nil
	}
	return c.media.Negotiator()
}

// teardown drops the local call state. Safe to call twice, the second one
// is a no-op.
func (c *Client) teardown(reason string) {
	c.mu.Lock()
	callID := c.callID
	if callID == "" {
		c.mu.Unlock()
		return
	}
	if c.media != nil {
		media := c.media
		c.media = nil
		// Close outside the lock: pion may fire OnConnectionStateChange
		// into teardown synchronously.
		defer media.Close()
	}
	c.callID = ""
	c.remote = ""
	c.mu.Unlock()

	log.Info().Str("module", "peer").Str("call_id", string(callID)).Str("reason", reason).Msg("call torn down")
	if c.OnCallEnded != nil {
		c.OnCallEnded(callID, reason)
	}
}

func (c *Client) sendSignal(to domain.Identity, kind string, sdp string, candidate *webrtc.ICECandidateInit) error {
	msg := map[string]any{
		"type": kind,
		"to":   string(to),
	}
	if sdp != "" {
		msg["sdp"] = sdp
	}
	if candidate != nil {
		msg["candidate"] = candidate
	}
	return c.sendJSON(msg)
}

func (c *Client) sendJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}
