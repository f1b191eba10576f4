package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/protocol"
)

const (
	CodeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	DefaultPingInterval = 5 * time.Second
)

// Registry is the single source of truth for which rooms exist.
type Registry interface {
	// Create allocates a room under a fresh, unused code.
	Create() (*Room, error)
	// Lookup resolves a code, case-insensitively.
	Lookup(code string) (*Room, error)
	// Delete removes a room, sends it the farewell frames and releases its
	// timers and connections. It reports whether the room existed.
	Delete(code string, farewell ...[]byte) bool
	// DeleteIdle is Delete for a room whose last activity is before cutoff.
	// Activity is checked under the room lock, so a room touched after the
	// caller looked at it survives.
	DeleteIdle(code string, cutoff time.Time, farewell ...[]byte) bool
	// Broadcast sends msg to a room by code. A missing room is not an error.
	Broadcast(code string, msg []byte) bool
	Rooms() []*Room
	Len() int
}

// Options configures rooms created by a registry.
type Options struct {
	Clock        clockwork.Clock
	Logger       zerolog.Logger
	PingInterval time.Duration

	// NewID allocates identity ids; uuid.NewString by default.
	NewID func() string
	// NewCode draws a candidate room code; GenerateCode by default.
	NewCode func() (string, error)
	// OnDelete runs after a room has been torn down.
	OnDelete func(code string)
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.NewCode == nil {
		o.NewCode = GenerateCode
	}
	return o
}

// GenerateCode draws CodeLength letters uniformly from A-Z.
func GenerateCode() (string, error) {
	n := big.NewInt(int64(len(codeAlphabet)))

	var b strings.Builder
	b.Grow(CodeLength)
	for j := 0; j < CodeLength; j++ {
		i, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b.WriteByte(codeAlphabet[i.Int64()])
	}

	return b.String(), nil
}

// Memory keeps every room in process memory.
type Memory struct {
	opts Options

	mu    sync.RWMutex
	rooms map[string]*Room
}

var _ Registry = (*Memory)(nil)

func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:  opts.withDefaults(),
		rooms: make(map[string]*Room),
	}
}

func (m *Memory) Create() (*Room, error) {
	for {
		code, err := m.opts.NewCode()
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if _, taken := m.rooms[code]; taken {
			m.mu.Unlock()
			m.opts.Logger.Debug().Str("room", code).Msg("room code collision, retrying")
			continue
		}
		r := newRoom(code, m.opts)
		m.rooms[code] = r
		m.mu.Unlock()

		m.opts.Logger.Info().Str("room", code).Msg("room created")

		return r, nil
	}
}

func (m *Memory) Lookup(code string) (*Room, error) {
	code = strings.ToUpper(code)

	m.mu.RLock()
	r, ok := m.rooms[code]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", code, protocol.ErrRoomNotFound)
	}
	return r, nil
}

func (m *Memory) Delete(code string, farewell ...[]byte) bool {
	return m.deleteIf(code, nil, farewell...)
}

func (m *Memory) DeleteIdle(code string, cutoff time.Time, farewell ...[]byte) bool {
	return m.deleteIf(code, func(r *Room) bool { return r.tick.Before(cutoff) }, farewell...)
}

// deleteIf removes the room when keep reports true for it. keep runs with
// both the registry and the room lock held.
func (m *Memory) deleteIf(code string, keep func(r *Room) bool, farewell ...[]byte) bool {
	code = strings.ToUpper(code)

	m.mu.Lock()
	r, ok := m.rooms[code]
	if !ok {
		m.mu.Unlock()
		return false
	}

	r.mu.Lock()
	if keep != nil && !keep(r) {
		r.mu.Unlock()
		m.mu.Unlock()
		return false
	}
	delete(m.rooms, code)
	m.mu.Unlock()

	r.closeLocked(farewell...)
	r.mu.Unlock()

	m.opts.Logger.Info().Str("room", code).Msg("room deleted")

	if m.opts.OnDelete != nil {
		m.opts.OnDelete(code)
	}

	return true
}

func (m *Memory) Broadcast(code string, msg []byte) bool {
	r, err := m.Lookup(code)
	if err != nil {
		m.opts.Logger.Warn().Str("room", code).Msg("broadcast to unknown room")
		return false
	}

	if err := r.Broadcast(msg); err != nil {
		m.opts.Logger.Warn().Str("room", code).Msg("broadcast to closed room")
		return false
	}
	return true
}

// Rooms returns a snapshot of every room, ordered by code.
func (m *Memory) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })

	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}
