package room

import (
	"fmt"

	"github.com/Seednode/feudbox/internal/game"
	"github.com/Seednode/feudbox/internal/protocol"
)

// Buzz records a buzz-in from id at its latency adjusted time, acknowledges
// it to peer and broadcasts the reordered sequence.
func (r *Room) Buzz(peer Peer, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	ident, ok := r.game.RegisteredPlayers[id]
	if !ok {
		return fmt.Errorf("identity %s in room %s: %w", id, r.code, protocol.ErrPlayerNotFound)
	}

	entry := game.BuzzEntry{ID: id, Time: game.AdjustedTime(ident, r.clock.Now())}
	r.game.Buzzed = game.InsertBuzz(r.game.Buzzed, entry)

	r.log.Debug().Str("id", id).Int64("time", entry.Time).Int("queue", len(r.game.Buzzed)).Msg("buzz")
	r.sendLocked(peer, protocol.NewSimple(protocol.Buzzed))
	r.broadcastStateLocked()

	return nil
}

// ClearBuzzers empties the buzz sequence. The cleared state and the
// clearbuzzers signal go out as two frames.
func (r *Room) ClearBuzzers() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	r.game.Buzzed = []game.BuzzEntry{}

	r.broadcastStateLocked()
	r.broadcastLocked(protocol.NewSimple(protocol.ClearBuzzers))

	return nil
}

// LoadGame installs new round content and broadcasts the reset board.
func (r *Room) LoadGame(c game.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	r.game.Load(c)

	r.log.Info().Int("rounds", len(c.Rounds)).Msg("game loaded")
	r.broadcastStateLocked()

	return nil
}

// MergeData applies a host board update. Moving to another round or
// toggling the title screen drops every pending buzz.
func (r *Room) MergeData(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.liveLocked(); err != nil {
		return err
	}

	changed, err := r.game.Merge(data)
	if err != nil {
		return protocol.Errorf(protocol.CodeParseError, "%v", err)
	}

	if changed {
		r.game.Buzzed = []game.BuzzEntry{}
		r.broadcastLocked(protocol.NewSimple(protocol.ClearBuzzers))
	}
	r.broadcastStateLocked()

	return nil
}
