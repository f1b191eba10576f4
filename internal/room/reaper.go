package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/feudbox/internal/protocol"
)

const (
	DefaultSweepInterval = 10 * time.Second
	DefaultIdleTimeout   = time.Hour
)

// Reaper periodically deletes rooms that have seen no activity for Idle.
type Reaper struct {
	Registry Registry
	Clock    clockwork.Clock
	Logger   zerolog.Logger
	Interval time.Duration
	Idle     time.Duration

	// OnReap runs for every room removed by a sweep.
	OnReap func(code string)
}

// Run sweeps on every tick until ctx is done.
func (rp *Reaper) Run(ctx context.Context) {
	clock := rp.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := rp.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	rp.Logger.Debug().Dur("interval", interval).Dur("idle", rp.idle()).Msg("reaper started")

	for {
		select {
		case <-ctx.Done():
			rp.Logger.Debug().Msg("reaper stopped")
			return
		case <-ticker.Chan():
			rp.Sweep(clock.Now())
		}
	}
}

// Sweep deletes every room idle since before now minus the idle timeout and
// returns how many were removed. Members are told the state is gone and
// that the game closed.
func (rp *Reaper) Sweep(now time.Time) int {
	cutoff := now.Add(-rp.idle())

	reaped := 0
	for _, r := range rp.Registry.Rooms() {
		if !r.LastActive().Before(cutoff) {
			continue
		}

		if !rp.Registry.DeleteIdle(r.Code(), cutoff,
			protocol.NewData(nil),
			protocol.NewErrorCode(protocol.CodeGameClosed),
		) {
			continue
		}
		reaped++

		rp.Logger.Info().Str("room", r.Code()).Msg("room expired after inactivity")

		if rp.OnReap != nil {
			rp.OnReap(r.Code())
		}
	}

	return reaped
}

func (rp *Reaper) idle() time.Duration {
	if rp.Idle <= 0 {
		return DefaultIdleTimeout
	}
	return rp.Idle
}
