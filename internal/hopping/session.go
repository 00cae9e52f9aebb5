package hopping

import (
	"errors"
	"fmt"
)

// ErrCoolingDown is returned when a switch is attempted during the cooldown.
var ErrCoolingDown = errors.New("hopping: cooldown in progress")

// Session combines the cooldown and the ledger for one client.
type Session struct {
	cooldown *Cooldown
	ledger   *Ledger
	current  string
}

// NewSession creates a session. current is the channel the user is in, if any.
func NewSession(cooldown *Cooldown, ledger *Ledger, current string) *Session {
	return &Session{cooldown: cooldown, ledger: ledger, current: current}
}

// Switch moves the user to hostID's channel. It refuses while blocked or
// cooling down; switching to the current channel is a no-op.
func (s *Session) Switch(hostID string) error {
	if hostID == "" || hostID == s.current {
		return nil
	}
	if s.ledger.IsBlocked() {
		return fmt.Errorf("%w (%ds remaining)", ErrBlocked, s.ledger.RemainingBlockSeconds())
	}
	if state := s.cooldown.State(); state.IsHoppingDisabled {
		return fmt.Errorf("%w (%ds remaining)", ErrCoolingDown, state.RemainingTime)
	}

	if s.current != "" {
		if err := s.ledger.RecordLeave(s.current); err != nil {
			return err
		}
	}
	if err := s.ledger.RecordJoin(hostID); err != nil {
		return err
	}
	s.current = hostID
	s.cooldown.SetChannel(hostID)
	return nil
}

// Current returns the channel the user is in.
func (s *Session) Current() string {
	return s.current
}

// Close releases the cooldown timer.
func (s *Session) Close() {
	s.cooldown.Close()
}
