package room

import (
	"fmt"

	"github.com/Seednode/feudbox/internal/game"
	"github.com/Seednode/feudbox/internal/protocol"
)

const windowPrefix = "game_window_"

// allocateLocked draws identity ids until one is unused.
func (r *Room) allocateLocked() string {
	for {
		id := r.newID()
		if _, taken := r.game.RegisteredPlayers[id]; !taken {
			return id
		}
	}
}

// RegisterHost binds peer as the room's host and replies with host_room.
func (r *Room) RegisterHost(peer Peer) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return "", err
	}

	id := r.allocateLocked()
	r.game.RegisteredPlayers[id] = game.Host()
	r.conns[id] = peer

	r.log.Info().Str("id", id).Msg("host registered")
	r.sendLocked(peer, protocol.NewRoomMessage(protocol.HostRoom, r.code, r.game, id))

	return id, nil
}

// RegisterPlayer adds a named player bound to peer and replies with
// join_room.
func (r *Room) RegisterPlayer(peer Peer, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return "", err
	}

	id := r.allocateLocked()
	r.game.RegisteredPlayers[id] = game.NewPlayer(name)
	r.conns[id] = peer

	r.log.Info().Str("id", id).Str("name", name).Msg("player registered")
	r.sendLocked(peer, protocol.NewRoomMessage(protocol.JoinRoom, r.code, r.game, id))

	return id, nil
}

// Resume rebinds an existing identity to peer, replacing whatever
// connection held it before. Only connectivity changes; name, team and
// score are untouched. A team index restarts latency tracking.
func (r *Room) Resume(peer Peer, id string, team *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	ident, ok := r.game.RegisteredPlayers[id]
	if !ok {
		return fmt.Errorf("identity %s in room %s: %w", id, r.code, protocol.ErrSessionNotFound)
	}

	r.conns[id] = peer

	r.log.Info().Str("id", id).Bool("host", ident.IsHost()).Msg("session resumed")
	r.sendLocked(peer, protocol.NewGetBackIn(r.code, r.game, id, ident, team))

	if team != nil && !ident.IsHost() {
		r.startPingerLocked(id, peer)
	}

	return nil
}

// AttachWindow binds a read-only mirror connection and pushes the current
// state to the room.
func (r *Room) AttachWindow(peer Peer, suffix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return "", err
	}

	id := windowPrefix + suffix
	r.conns[id] = peer

	r.log.Debug().Str("id", id).Msg("game window attached")
	r.broadcastStateLocked()

	return id, nil
}

// QuitPlayer removes a non-host identity along with its connection, ping
// timer and pending buzzes, then broadcasts the new state.
func (r *Room) QuitPlayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	if _, ok := r.game.RegisteredPlayers[id]; !ok {
		return fmt.Errorf("identity %s in room %s: %w", id, r.code, protocol.ErrPlayerNotFound)
	}

	r.stopPingerLocked(id)

	if peer, ok := r.conns[id]; ok {
		r.sendLocked(peer, protocol.NewSimple(protocol.Quit))
		delete(r.conns, id)
		if !r.boundLocked(peer) {
			_ = peer.Close()
		}
	}

	r.game.Buzzed = game.RemoveBuzzes(r.game.Buzzed, id)
	delete(r.game.RegisteredPlayers, id)

	r.log.Info().Str("id", id).Msg("player quit")
	r.broadcastStateLocked()

	return nil
}

// boundLocked reports whether peer still holds any slot.
func (r *Room) boundLocked(peer Peer) bool {
	for _, p := range r.conns {
		if p == peer {
			return true
		}
	}
	return false
}
