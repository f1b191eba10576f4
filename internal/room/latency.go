package room

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/Seednode/feudbox/internal/protocol"
)

// pinger re-issues pings to one identity on a fixed cadence until it is
// cancelled or its connection goes away.
type pinger struct {
	id   string
	peer Peer
	stop chan struct{}
	once sync.Once
}

func (p *pinger) cancel() {
	p.once.Do(func() { close(p.stop) })
}

// startPingerLocked replaces any timer already running for id.
func (r *Room) startPingerLocked(id string, peer Peer) {
	r.stopPingerLocked(id)

	p := &pinger{
		id:   id,
		peer: peer,
		stop: make(chan struct{}),
	}
	r.pingers[id] = p

	ticker := r.clock.NewTicker(r.pingInterval)
	go r.runPinger(p, ticker)

	r.log.Debug().Str("id", id).Dur("interval", r.pingInterval).Msg("ping timer started")
}

func (r *Room) stopPingerLocked(id string) {
	p, ok := r.pingers[id]
	if !ok {
		return
	}
	delete(r.pingers, id)
	p.cancel()

	r.log.Debug().Str("id", id).Msg("ping timer stopped")
}

func (r *Room) runPinger(p *pinger, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.peer.Done():
			r.mu.Lock()
			if r.pingers[p.id] == p {
				r.stopPingerLocked(p.id)
			}
			r.mu.Unlock()
			p.cancel()
			return
		case <-ticker.Chan():
			r.mu.Lock()
			select {
			case <-p.stop:
				r.mu.Unlock()
				return
			default:
			}

			if ident, ok := r.game.RegisteredPlayers[p.id]; ok {
				if player, ok := ident.Player(); ok {
					player.StartPing(r.clock.Now())
					r.sendLocked(p.peer, protocol.NewPing(p.id))
				}
			}
			r.mu.Unlock()
		}
	}
}

// RegisterBuzzer readies an identity to buzz on the given team: its
// latency window is reset, it is pinged at once and then on every tick of
// the ping timer.
func (r *Room) RegisterBuzzer(peer Peer, id string, team *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	ident, ok := r.game.RegisteredPlayers[id]
	if !ok {
		return fmt.Errorf("identity %s in room %s: %w", id, r.code, protocol.ErrPlayerNotFound)
	}

	player, isPlayer := ident.Player()
	if isPlayer {
		player.ResetLatency(r.clock.Now())
		player.Team = team
	}

	r.log.Debug().Str("id", id).Msg("buzzer ready")
	r.sendLocked(peer, protocol.NewPing(id))
	r.sendLocked(peer, protocol.NewRegistered(id))
	r.broadcastStateLocked()

	if isPlayer {
		r.startPingerLocked(id, peer)
	}

	return nil
}

// RegisterSpectator pings a spectating connection once so it can measure
// its own link, and pushes the current state.
func (r *Room) RegisterSpectator(peer Peer, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	r.log.Debug().Str("id", id).Msg("spectator ready")
	r.sendLocked(peer, protocol.NewPing(id))
	r.sendLocked(peer, protocol.NewRegistered(id))
	r.broadcastStateLocked()

	return nil
}

// Pong completes a round trip for id. Pongs from the host, spectators or
// unknown ids are ignored.
func (r *Room) Pong(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	ident, ok := r.game.RegisteredPlayers[id]
	if !ok {
		return nil
	}
	player, ok := ident.Player()
	if !ok {
		return nil
	}

	if rtt, ok := player.Pong(r.clock.Now()); ok {
		r.log.Debug().
			Str("id", id).
			Dur("rtt", rtt).
			Float64("latency", player.Latency).
			Msg("pong")
	}

	return nil
}
