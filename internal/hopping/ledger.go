package hopping

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

const (
	// StorageKey is the single key the ledger persists under.
	StorageKey = "channelHoppingState"

	// BlockDuration is how long a hopping lockout lasts.
	BlockDuration = 5 * time.Minute

	// HopWindow and MaxHopsPerWindow define abuse: that many joins inside the window.
	HopWindow        = 60 * time.Second
	MaxHopsPerWindow = 5

	// maxEntries caps the persisted history.
	maxEntries = 50
)

// ErrBlocked is returned when a join is attempted during a lockout.
var ErrBlocked = errors.New("hopping: temporarily blocked for channel hopping")

// Ledger is the persisted channel-hopping record. Reads never fail: missing
// or corrupt state counts as "not blocked" and corrupt state is wiped.
type Ledger struct {
	store Store
	clock clock.PassiveClock
	log   logrus.FieldLogger
	mu    sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store, clk clock.PassiveClock, log logrus.FieldLogger) *Ledger {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Ledger{store: store, clock: clk, log: logging.Component(log, "hopping-ledger")}
}

// IsBlocked reports whether a lockout is active. An elapsed lockout is
// removed from storage as a side effect.
func (l *Ledger) IsBlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.loadLocked()
	if !ok {
		return false
	}
	if state.IsBlocked && l.blockElapsed(state) {
		l.deleteLocked()
		return false
	}
	return state.IsBlocked && state.BlockStartTime != nil
}

// RemainingBlockSeconds returns the whole seconds left in the lockout,
// rounded up, or 0. It never writes.
func (l *Ledger) RemainingBlockSeconds() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.peekLocked()
	if !ok || !state.IsBlocked || state.BlockStartTime == nil {
		return 0
	}
	remaining := BlockDuration - l.clock.Since(time.UnixMilli(*state.BlockStartTime))
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// Clear removes the persisted record. Storage errors are logged only.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleteLocked()
}

// State returns the current record, or an empty one.
func (l *Ledger) State() models.HoppingState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.loadLocked()
	if !ok {
		return models.HoppingState{}
	}
	return state
}

// RecordJoin appends a visit to hostID. Reaching MaxHopsPerWindow joins
// within HopWindow starts a lockout; the join itself is still recorded.
func (l *Ledger) RecordJoin(hostID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, _ := l.loadLocked()
	if state.IsBlocked && !l.blockElapsed(state) {
		return ErrBlocked
	}
	if state.IsBlocked {
		state = models.HoppingState{}
	}

	now := l.clock.Now()
	state.Entries = append(state.Entries, models.HoppingEntry{HostID: hostID, JoinTime: now.UnixMilli()})
	if len(state.Entries) > maxEntries {
		state.Entries = state.Entries[len(state.Entries)-maxEntries:]
	}
	if !containsString(state.VisitedChannelsInSession, hostID) {
		state.VisitedChannelsInSession = append(state.VisitedChannelsInSession, hostID)
	}

	if recentJoins(state.Entries, now) >= MaxHopsPerWindow {
		start := now.UnixMilli()
		state.IsBlocked = true
		state.BlockStartTime = &start
		l.log.WithField("joins", recentJoins(state.Entries, now)).Warn("channel hopping detected, blocking")
	}
	return l.saveLocked(state)
}

// RecordLeave closes the most recent open visit to hostID.
func (l *Ledger) RecordLeave(hostID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.loadLocked()
	if !ok {
		return nil
	}
	now := l.clock.Now().UnixMilli()
	for i := len(state.Entries) - 1; i >= 0; i-- {
		entry := &state.Entries[i]
		if entry.HostID != hostID || entry.LeaveTime != nil {
			continue
		}
		leave := now
		duration := now - entry.JoinTime
		entry.LeaveTime = &leave
		entry.Duration = &duration
		return l.saveLocked(state)
	}
	return nil
}

func (l *Ledger) blockElapsed(state models.HoppingState) bool {
	if state.BlockStartTime == nil {
		return true
	}
	return l.clock.Since(time.UnixMilli(*state.BlockStartTime)) >= BlockDuration
}

// peekLocked decodes the record without repairing it.
func (l *Ledger) peekLocked() (models.HoppingState, bool) {
	raw, err := l.store.Get(StorageKey)
	if err != nil {
		return models.HoppingState{}, false
	}
	var state models.HoppingState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.HoppingState{}, false
	}
	return state, true
}

// loadLocked decodes the record, wiping it when it cannot be parsed.
func (l *Ledger) loadLocked() (models.HoppingState, bool) {
	raw, err := l.store.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.log.WithError(err).Warn("failed to read hopping state")
		}
		return models.HoppingState{}, false
	}
	var state models.HoppingState
	if err := json.Unmarshal(raw, &state); err != nil {
		l.log.WithError(err).Warn("corrupt hopping state, resetting")
		l.deleteLocked()
		return models.HoppingState{}, false
	}
	return state, true
}

func (l *Ledger) saveLocked(state models.HoppingState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode hopping state: %w", err)
	}
	if err := l.store.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("save hopping state: %w", err)
	}
	return nil
}

func (l *Ledger) deleteLocked() {
	if err := l.store.Delete(StorageKey); err != nil && !errors.Is(err, ErrNotFound) {
		l.log.WithError(err).Warn("failed to clear hopping state")
	}
}

func recentJoins(entries []models.HoppingEntry, now time.Time) int {
	cutoff := now.Add(-HopWindow).UnixMilli()
	n := 0
	for _, e := range entries {
		if e.JoinTime >= cutoff {
			n++
		}
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
