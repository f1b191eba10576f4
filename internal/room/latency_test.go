package room

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/feudbox/internal/game"
)

func countAction(p *fakePeer, action string) int {
	n := 0
	for _, a := range p.actions() {
		if a == action {
			n++
		}
	}
	return n
}

func TestRoom_RegisterBuzzer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	host, ana := newFakePeer(), newFakePeer()
	_, err = r.RegisterHost(host)
	require.NoError(t, err)
	anaID, err := r.RegisterPlayer(ana, "Ana")
	require.NoError(t, err)
	host.reset()
	ana.reset()

	team := 0
	require.NoError(t, r.RegisterBuzzer(ana, anaID, &team))

	assert.Equal(t, []string{"ping", "registered", "data"}, ana.actions())
	assert.Equal(t, []string{"data"}, host.actions())

	require.NoError(t, r.view(func(g *game.Game) {
		p, _ := g.RegisteredPlayers[anaID].Player()
		require.NotNil(t, p.Team)
		assert.Equal(t, 0, *p.Team)
	}))

	assert.Error(t, r.RegisterBuzzer(ana, "ghost", &team))
}

func TestRoom_RegisterSpectator(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	host, watcher := newFakePeer(), newFakePeer()
	hostID, err := r.RegisterHost(host)
	require.NoError(t, err)
	host.reset()

	require.NoError(t, r.RegisterSpectator(watcher, "spectator-1"))

	// The spectator is not bound yet, so only the host sees the broadcast.
	assert.Equal(t, []string{"ping", "registered"}, watcher.actions())
	assert.Equal(t, []string{"data"}, host.actions())

	require.NoError(t, r.RegisterSpectator(host, hostID))
	r.mu.Lock()
	assert.Empty(t, r.pingers)
	r.mu.Unlock()
}

func TestRoom_PongBeforePing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	anaID, err := r.RegisterPlayer(newFakePeer(), "Ana")
	require.NoError(t, err)

	require.NoError(t, r.Pong(anaID))
	require.NoError(t, r.Pong("unknown"))

	require.NoError(t, r.view(func(g *game.Game) {
		p, _ := g.RegisteredPlayers[anaID].Player()
		assert.Empty(t, p.Latencies)
		assert.Zero(t, p.Latency)
	}))
}

func TestRoom_PingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	ana := newFakePeer()
	anaID, err := r.RegisterPlayer(ana, "Ana")
	require.NoError(t, err)

	team := 1
	require.NoError(t, r.RegisterBuzzer(ana, anaID, &team))
	require.Equal(t, 1, countAction(ana, "ping"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultPingInterval)
	require.Eventually(t, func() bool {
		return countAction(ana, "ping") == 2
	}, time.Second, 5*time.Millisecond)

	// The re-issued ping restarts the round trip.
	clock.Advance(80 * time.Millisecond)
	require.NoError(t, r.Pong(anaID))
	require.NoError(t, r.view(func(g *game.Game) {
		p, _ := g.RegisteredPlayers[anaID].Player()
		assert.Equal(t, []int64{80}, p.Latencies)
	}))

	_ = ana.Close()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.pingers) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRoom_ClosingOneConnectionKeepsOtherPingers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	ana, bo := newFakePeer(), newFakePeer()
	anaID, err := r.RegisterPlayer(ana, "Ana")
	require.NoError(t, err)
	boID, err := r.RegisterPlayer(bo, "Bo")
	require.NoError(t, err)

	team := 0
	require.NoError(t, r.RegisterBuzzer(ana, anaID, &team))
	require.NoError(t, r.RegisterBuzzer(bo, boID, &team))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	_ = ana.Close()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		_, anaRunning := r.pingers[anaID]
		_, boRunning := r.pingers[boID]
		return !anaRunning && boRunning
	}, time.Second, 5*time.Millisecond)

	// Only Bo's ticker is still waiting on the clock.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultPingInterval)
	require.Eventually(t, func() bool {
		return countAction(bo, "ping") == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, countAction(ana, "ping"))

	require.NoError(t, r.view(func(g *game.Game) {
		assert.Contains(t, g.RegisteredPlayers, anaID)
	}))
}

func TestRoom_DeleteStopsPingers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	for _, name := range []string{"Ana", "Bo"} {
		p := newFakePeer()
		id, err := r.RegisterPlayer(p, name)
		require.NoError(t, err)
		require.NoError(t, r.RegisterBuzzer(p, id, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	require.True(t, m.Delete(r.Code()))

	r.mu.Lock()
	assert.Empty(t, r.pingers)
	assert.Empty(t, r.conns)
	r.mu.Unlock()

	// Stopped tickers no longer count as waiters.
	require.NoError(t, clock.BlockUntilContext(ctx, 0))
}

func TestRoom_BuzzOrdering(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	register := func(name string, rtt time.Duration) (string, *fakePeer) {
		p := newFakePeer()
		id, err := r.RegisterPlayer(p, name)
		require.NoError(t, err)
		team := 0
		require.NoError(t, r.RegisterBuzzer(p, id, &team))
		clock.Advance(rtt)
		require.NoError(t, r.Pong(id))
		return id, p
	}

	anaID, ana := register("Ana", 120*time.Millisecond)
	boID, bo := register("Bo", 10*time.Millisecond)
	cyID, cy := register("Cy", 300*time.Millisecond)

	t1 := clock.Now()
	require.NoError(t, r.Buzz(ana, anaID))

	clock.Advance(50 * time.Millisecond)
	require.NoError(t, r.Buzz(bo, boID))
	assert.Equal(t, []string{anaID, boID}, buzzedIDs(t, r))

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, r.Buzz(cy, cyID))
	assert.Equal(t, []string{cyID, anaID, boID}, buzzedIDs(t, r))

	require.NoError(t, r.view(func(g *game.Game) {
		assert.Equal(t, t1.UnixMilli()+150-300, g.Buzzed[0].Time)
		assert.Equal(t, t1.UnixMilli()-120, g.Buzzed[1].Time)
		assert.Equal(t, t1.UnixMilli()+50-10, g.Buzzed[2].Time)
	}))

	assert.Equal(t, 1, countAction(ana, "buzzed"))
	assert.Equal(t, 1, countAction(bo, "buzzed"))
	assert.Equal(t, "data", cy.last()["action"])
}

func TestRoom_HostBuzzUsesServerTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newTestRegistry(t, clock)
	r, err := m.Create()
	require.NoError(t, err)

	host := newFakePeer()
	hostID, err := r.RegisterHost(host)
	require.NoError(t, err)

	require.NoError(t, r.Buzz(host, hostID))
	require.NoError(t, r.view(func(g *game.Game) {
		require.Len(t, g.Buzzed, 1)
		assert.Equal(t, clock.Now().UnixMilli(), g.Buzzed[0].Time)
	}))
}
