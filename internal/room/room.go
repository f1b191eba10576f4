/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package room owns every live game session: the registry of rooms, the
// identities registered in each, their connections and ping timers, and the
// background sweep that expires idle rooms.
package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/game"
	"github.com/Seednode/feudbox/internal/protocol"
)

// Peer is a live connection as seen by a room. Send must not block; a
// connection that cannot keep up reports an error instead.
type Peer interface {
	Send(msg []byte) error
	Close() error
	Done() <-chan struct{}
}

// Room is one isolated game session. All methods are safe for concurrent
// use; mutations of a room's game are serialized by its lock and every
// broadcast is queued while that lock is held, so all members observe
// state changes in the order they were applied.
type Room struct {
	code         string
	clock        clockwork.Clock
	log          zerolog.Logger
	pingInterval time.Duration
	newID        func() string

	mu      sync.Mutex
	game    *game.Game
	conns   map[string]Peer
	pingers map[string]*pinger
	tick    time.Time
	closed  bool
}

func newRoom(code string, opts Options) *Room {
	return &Room{
		code:         code,
		clock:        opts.Clock,
		log:          opts.Logger.With().Str("room", code).Logger(),
		pingInterval: opts.PingInterval,
		newID:        opts.NewID,
		game:         game.New(code),
		conns:        make(map[string]Peer),
		pingers:      make(map[string]*pinger),
		tick:         opts.Clock.Now(),
	}
}

func (r *Room) Code() string {
	return r.code
}

// Touch records activity on the room.
func (r *Room) Touch() {
	r.mu.Lock()
	r.tick = r.clock.Now()
	r.mu.Unlock()
}

// LastActive returns the time of the most recent Touch.
func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tick
}

// connections returns the number of bound connection slots.
func (r *Room) connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conns)
}

// view runs fn against the game while holding the room lock. fn must not
// retain g or call back into the room.
func (r *Room) view(fn func(g *game.Game)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}
	fn(r.game)

	return nil
}

// Exclusive runs fn while holding the room lock, so it cannot interleave
// with the room being closed. fn must not call back into the room.
func (r *Room) Exclusive(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}
	return fn()
}

// Broadcast sends msg to every connection bound in the room.
func (r *Room) Broadcast(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}
	r.broadcastLocked(msg)

	return nil
}

// Disconnect unbinds every slot held by peer and stops any ping timer
// running over it. Registered identities and game state are left alone so
// the owner can get back in later.
func (r *Room) Disconnect(peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.conns {
		if p != peer {
			continue
		}
		delete(r.conns, id)
		r.log.Debug().Str("id", id).Msg("connection unbound")
	}
	for id, p := range r.pingers {
		if p.peer == peer {
			r.stopPingerLocked(id)
		}
	}
}

func (r *Room) liveLocked() error {
	if r.closed {
		return fmt.Errorf("room %s: %w", r.code, protocol.ErrRoomNotFound)
	}
	return nil
}

func (r *Room) sendLocked(peer Peer, msg []byte) {
	if err := peer.Send(msg); err != nil {
		r.log.Warn().Err(err).Msg("send failed")
	}
}

// broadcastLocked delivers msg once to each distinct peer. A failed send is
// logged and skipped.
func (r *Room) broadcastLocked(msg []byte) {
	seen := make(map[Peer]struct{}, len(r.conns))
	for id, p := range r.conns {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		if err := p.Send(msg); err != nil {
			r.log.Warn().Err(err).Str("id", id).Msg("broadcast send failed")
		}
	}
}

func (r *Room) broadcastStateLocked() {
	r.broadcastLocked(protocol.NewData(r.game))
}

// closeLocked delivers the farewell frames, stops every timer and closes
// every connection. The room rejects all later operations.
func (r *Room) closeLocked(farewell ...[]byte) {
	if r.closed {
		return
	}

	for _, msg := range farewell {
		r.broadcastLocked(msg)
	}

	for id := range r.pingers {
		r.stopPingerLocked(id)
	}

	closed := make(map[Peer]struct{}, len(r.conns))
	for id, p := range r.conns {
		delete(r.conns, id)
		if _, dup := closed[p]; dup {
			continue
		}
		closed[p] = struct{}{}
		_ = p.Close()
	}

	r.closed = true
}
