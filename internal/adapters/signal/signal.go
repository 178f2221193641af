package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/app"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the WebSocket edge: it upgrades connections, registers
// presence and dispatches incoming frames to the coordinator and relay.
type Controller struct {
	Presence *app.Presence
	Coord    *app.Coordinator
	Relay    *app.Relay
	Limiter  *CallRateLimiter

	PingPeriod time.Duration
	ReadLimit  int64
}

func NewController(presence *app.Presence, coord *app.Coordinator, relay *app.Relay, limiter *CallRateLimiter, pingPeriod time.Duration, readLimit int64) *Controller {
	return &Controller{
		Presence:   presence,
		Coord:      coord,
		Relay:      relay,
		Limiter:    limiter,
		PingPeriod: pingPeriod,
		ReadLimit:  readLimit,
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until the transport
// drops. The identity comes from the auth middleware, never from the client
// payloads.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	identity := domain.Identity(c.GetString("identity"))
	log.Info().Str("module", "signal").Str("identity", string(identity)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	connection := &core.Connection{
		ID:       core.ConnectionID(uuid.NewString()),
		Identity: identity,
		Signal:   conn,
	}

	ctl.Presence.Register(connection)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, connection, conn)
		if offline := ctl.Presence.Unregister(connection); offline {
			ctl.Coord.HandleDisconnect(identity)
		}
	}()
}

func (ctl *Controller) dispatch(id domain.Identity, c *wsConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case core.TypeCallRequest:
		ctl.handleCallRequest(id, c, data)
	case core.TypeCallAccepted:
		ctl.handleCallAccepted(id, c, data)
	case core.TypeCallRejected:
		ctl.handleCallRejected(id, c, data)
	case core.TypeCallEnded:
		ctl.handleCallEnded(id, c, data)
	case core.TypeOffer, core.TypeAnswer, core.TypeICECandidate:
		ctl.handleSignalRelay(id, env.Type, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
