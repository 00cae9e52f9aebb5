package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/stories"
)

// HistoryDeleter removes story history items upstream.
type HistoryDeleter interface {
	DeleteHistory(ctx context.Context, token, historyID string) error
}

// StoryReaper owns one expiry watch per displayed story slot.
type StoryReaper struct {
	deleter       HistoryDeleter
	clock         clock.WithDelayedExecution
	deleteTimeout time.Duration
	log           logrus.FieldLogger

	mu      sync.Mutex
	watches map[string]*reaperSlot
	closed  bool
}

type reaperSlot struct {
	watch *stories.Watch

	mu    sync.Mutex
	token string
}

// NewStoryReaper creates a reaper. deleteTimeout bounds each upstream delete.
func NewStoryReaper(deleter HistoryDeleter, clk clock.WithDelayedExecution, deleteTimeout time.Duration, log logrus.FieldLogger) *StoryReaper {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &StoryReaper{
		deleter:       deleter,
		clock:         clk,
		deleteTimeout: deleteTimeout,
		log:           logging.Component(log, "story-reaper"),
		watches:       make(map[string]*reaperSlot),
	}
}

// Track mounts or re-evaluates the watch in slot. The token is used for the
// eventual upstream delete; the most recent caller's token wins. ctx bounds
// the delete of a story that is already expired.
func (r *StoryReaper) Track(ctx context.Context, slot, historyID string, createdAt time.Time, token string) (models.StoryStatus, error) {
	if historyID == "" {
		return models.StoryStatus{}, fmt.Errorf("%w: history_id is required", ErrValidation)
	}
	if slot == "" {
		slot = historyID
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return models.StoryStatus{}, fmt.Errorf("story reaper is closed")
	}
	s, ok := r.watches[slot]
	if !ok {
		s = &reaperSlot{}
		s.watch = stories.NewWatch(r.clock, r.deleteFunc(s), r.log.WithField("slot", slot))
		r.watches[slot] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.watch.Evaluate(ctx, historyID, createdAt)
	return models.StoryStatus{
		Slot:      slot,
		HistoryID: historyID,
		Expired:   s.watch.Expired(),
		Deleted:   s.watch.Deleted(),
	}, nil
}

func (r *StoryReaper) deleteFunc(s *reaperSlot) stories.DeleteFunc {
	return func(ctx context.Context, historyID string) error {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if r.deleteTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.deleteTimeout)
			defer cancel()
		}
		return r.deleter.DeleteHistory(ctx, token, historyID)
	}
}

// Untrack unmounts the watch in slot, cancelling its timer.
func (r *StoryReaper) Untrack(slot string) bool {
	r.mu.Lock()
	s, ok := r.watches[slot]
	delete(r.watches, slot)
	r.mu.Unlock()

	if ok {
		s.watch.Close()
	}
	return ok
}

// Len returns the number of mounted watches.
func (r *StoryReaper) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

// Close unmounts every watch.
func (r *StoryReaper) Close() {
	r.mu.Lock()
	r.closed = true
	watches := r.watches
	r.watches = make(map[string]*reaperSlot)
	r.mu.Unlock()

	for _, s := range watches {
		s.watch.Close()
	}
}
