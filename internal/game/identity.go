package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// MaxLatencySamples bounds the rolling latency window of a player.
const MaxLatencySamples = 5

const hostMarker = "host"

// Identity occupies a registered slot in a room. It is either the host or a
// player; callers must discriminate with IsHost or Player before touching
// player state.
type Identity struct {
	player *Player
}

// Host returns the identity of a room's host.
func Host() *Identity {
	return &Identity{}
}

func NewPlayer(name string) *Identity {
	return &Identity{player: &Player{Role: "player", Name: name}}
}

func (i *Identity) IsHost() bool {
	return i.player == nil
}

// Player returns the structured player record, or false for the host.
func (i *Identity) Player() (*Player, bool) {
	return i.player, i.player != nil
}

func (i *Identity) MarshalJSON() ([]byte, error) {
	if i.player == nil {
		return json.Marshal(hostMarker)
	}
	return json.Marshal(i.player)
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != hostMarker {
			return errors.New("identity: unknown marker " + s)
		}
		i.player = nil
		return nil
	}

	p := &Player{}
	if err := json.Unmarshal(data, p); err != nil {
		return err
	}
	i.player = p
	return nil
}

// Player is a non-host participant.
type Player struct {
	Role      string  `json:"role"`
	Name      string  `json:"name"`
	Team      *int    `json:"team,omitempty"`
	Latencies []int64 `json:"latencies,omitempty"`
	Latency   float64 `json:"latency,omitempty"`

	start time.Time
}

// StartPing records the moment a ping was sent to this player.
func (p *Player) StartPing(now time.Time) {
	p.start = now
}

// ResetLatency clears the sample window and stamps a fresh ping start.
func (p *Player) ResetLatency(now time.Time) {
	p.Latencies = []int64{}
	p.Latency = 0
	p.start = now
}

// Pong records the round trip of the last ping. A pong without a recorded
// ping only establishes a baseline and reports false.
func (p *Player) Pong(now time.Time) (time.Duration, bool) {
	if p.start.IsZero() || p.Latencies == nil {
		p.start = now
		p.Latencies = []int64{}
		return 0, false
	}

	rtt := now.Sub(p.start)
	for len(p.Latencies) >= MaxLatencySamples {
		p.Latencies = p.Latencies[1:]
	}
	p.Latencies = append(p.Latencies, rtt.Milliseconds())

	var sum int64
	for _, l := range p.Latencies {
		sum += l
	}
	p.Latency = float64(sum) / float64(len(p.Latencies))

	return rtt, true
}

// HasLatency reports whether at least one sample has been recorded.
func (p *Player) HasLatency() bool {
	return len(p.Latencies) > 0
}
