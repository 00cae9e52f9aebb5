package hopping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_CooldownThenBlock(t *testing.T) {
	clk := newTickerClock()
	ledger := NewLedger(newMemStore(), clk, quietLogger())
	// a one-second cooldown keeps the test short
	s := NewSession(NewCooldown(clk, time.Second, ""), ledger, "")
	defer s.Close()

	require.NoError(t, s.Switch("h1"))
	assert.ErrorIs(t, s.Switch("h2"), ErrCoolingDown)
	assert.NoError(t, s.Switch("h1"), "staying put is always allowed")

	hosts := []string{"h2", "h3", "h4", "h5"}
	for _, h := range hosts {
		stepSecond(t, clk, s.cooldown, 0)
		require.NoError(t, s.Switch(h))
	}
	assert.Equal(t, "h5", s.Current())

	stepSecond(t, clk, s.cooldown, 0)
	assert.ErrorIs(t, s.Switch("h6"), ErrBlocked)

	s.Close()
	assert.Equal(t, clk.started.Load(), clk.stopped.Load(), "every countdown must be stopped")
}
