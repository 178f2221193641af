package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

// Presence maps identities to their live connections. An identity is online
// iff it has at least one connection; the entry disappears with the last one.
// It also implements core.Notifier since it owns the fan-out targets.
type Presence struct {
	mu    sync.RWMutex
	conns map[domain.Identity]map[core.ConnectionID]*core.Connection
}

func NewPresence() *Presence {
	return &Presence{
		conns: make(map[domain.Identity]map[core.ConnectionID]*core.Connection),
	}
}

// Register adds conn to its identity's set. The presence broadcast fires
// only on the empty -> non-empty transition, not for every extra tab.
func (p *Presence) Register(conn *core.Connection) {
	p.mu.Lock()
	set, ok := p.conns[conn.Identity]
	if !ok {
		set = make(map[core.ConnectionID]*core.Connection)
		p.conns[conn.Identity] = set
	}
	wasOffline := len(set) == 0
	set[conn.ID] = conn
	p.mu.Unlock()

	log.Info().Str("module", "app.presence").Str("identity", string(conn.Identity)).Str("conn", string(conn.ID)).Msg("connection registered")
	if wasOffline {
		p.BroadcastAll(core.NewPresenceEvent(conn.Identity, true))
	}
}

// Unregister removes conn and reports whether its identity went offline.
func (p *Presence) Unregister(conn *core.Connection) (offline bool) {
	p.mu.Lock()
	set, ok := p.conns[conn.Identity]
	if ok {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(p.conns, conn.Identity)
			offline = true
		}
	}
	p.mu.Unlock()

	log.Info().Str("module", "app.presence").Str("identity", string(conn.Identity)).Str("conn", string(conn.ID)).Bool("offline", offline).Msg("connection unregistered")
	if offline {
		p.BroadcastAll(core.NewPresenceEvent(conn.Identity, false))
	}
	return offline
}

func (p *Presence) Online(id domain.Identity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[id]) > 0
}

// ConnectionsFor returns a snapshot of id's live connections, possibly empty.
func (p *Presence) ConnectionsFor(id domain.Identity) []*core.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*core.Connection, 0, len(p.conns[id]))
	for _, c := range p.conns[id] {
		out = append(out, c)
	}
	return out
}

func (p *Presence) ListOnline() []domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Identity, 0, len(p.conns))
	for id := range p.conns {
		out = append(out, id)
	}
	return out
}

// SendTo fans event out to every live connection of id. A connection that
// refuses the frame (backpressure) is closed; its read pump will unregister
// it on the way out.
func (p *Presence) SendTo(id domain.Identity, event any) int {
	frame, err := encode(event)
	if err != nil {
		return 0
	}
	sent := 0
	for _, c := range p.ConnectionsFor(id) {
		if err := c.Signal.TrySend(frame); err != nil {
			log.Warn().Str("module", "app.presence").Str("identity", string(id)).Str("conn", string(c.ID)).Err(err).Msg("send failed, closing connection")
			c.Signal.Close()
			continue
		}
		sent++
	}
	return sent
}

func (p *Presence) BroadcastAll(event any) {
	frame, err := encode(event)
	if err != nil {
		return
	}
	p.mu.RLock()
	targets := make([]*core.Connection, 0, len(p.conns))
	for _, set := range p.conns {
		for _, c := range set {
			targets = append(targets, c)
		}
	}
	p.mu.RUnlock()

	for _, c := range targets {
		if err := c.Signal.TrySend(frame); err != nil {
			c.Signal.Close()
		}
	}
}

func encode(event any) (core.Frame, error) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Str("module", "app.presence").Err(err).Msg("event marshal")
		return nil, err
	}
	return core.Frame(b), nil
}
