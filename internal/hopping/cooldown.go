package hopping

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// CooldownDuration is the minimum dwell time after switching channels.
const CooldownDuration = 15 * time.Second

// Cooldown disables hopping for a while after every channel change.
// It restarts only when the observed channel changes to a new non-empty
// value, and at most one countdown runs at a time.
type Cooldown struct {
	clock    clock.WithTicker
	duration time.Duration
	onChange func(models.CooldownState)

	mu        sync.Mutex
	channel   string
	remaining int
	ticker    clock.Ticker
	stop      chan struct{}
	closed    bool
}

// NewCooldown creates a cooldown observing initialChannel. A non-empty
// initial channel starts a countdown right away.
func NewCooldown(clk clock.WithTicker, duration time.Duration, initialChannel string) *Cooldown {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if duration <= 0 {
		duration = CooldownDuration
	}
	c := &Cooldown{clock: clk, duration: duration}
	c.SetChannel(initialChannel)
	return c
}

// OnChange registers a callback fired after every state change, outside the lock.
func (c *Cooldown) OnChange(fn func(models.CooldownState)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetChannel reports the channel the user is currently in.
func (c *Cooldown) SetChannel(channel string) {
	c.mu.Lock()
	if c.closed || channel == "" || channel == c.channel {
		c.mu.Unlock()
		return
	}
	c.channel = channel
	c.cancelLocked()

	c.remaining = int(c.duration / time.Second)
	c.ticker = c.clock.NewTicker(time.Second)
	c.stop = make(chan struct{})
	go c.run(c.ticker, c.stop)

	state, notify := c.stateLocked(), c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

func (c *Cooldown) run(ticker clock.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C():
			c.mu.Lock()
			if c.stop != stop {
				c.mu.Unlock()
				return
			}
			c.remaining--
			finished := c.remaining <= 0
			if finished {
				c.remaining = 0
				c.cancelLocked()
			}
			state, notify := c.stateLocked(), c.onChange
			c.mu.Unlock()

			if notify != nil {
				notify(state)
			}
			if finished {
				return
			}
		case <-stop:
			return
		}
	}
}

// State returns the current cooldown state.
func (c *Cooldown) State() models.CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close stops any running countdown. The cooldown is unusable afterwards.
func (c *Cooldown) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelLocked()
}

func (c *Cooldown) stateLocked() models.CooldownState {
	return models.CooldownState{
		Channel:           c.channel,
		IsHoppingDisabled: c.remaining > 0,
		RemainingTime:     c.remaining,
	}
}

func (c *Cooldown) cancelLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}
