// Package stories enforces the visibility window of ephemeral story items.
package stories

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
)

// VisibilityWindow is how long a story stays visible after creation.
const VisibilityWindow = 48 * time.Hour

// DeleteFunc removes an expired story. It may be nil, in which case the
// watch only tracks expiry.
type DeleteFunc func(ctx context.Context, historyID string) error

// Watch tracks one displayed story slot. It marks the story expired once the
// window has elapsed and calls the delete function at most once per history ID.
// A failed delete clears the in-flight flag so a later evaluation retries.
type Watch struct {
	clock    clock.WithDelayedExecution
	deleteFn DeleteFunc
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	historyID string
	createdAt time.Time
	expired   bool
	deleting  bool
	deleted   bool
	timer     clock.Timer
	closed    bool
}

// NewWatch creates an idle watch. Close must be called when the slot goes away.
func NewWatch(clk clock.WithDelayedExecution, deleteFn DeleteFunc, log logrus.FieldLogger) *Watch {
	if clk == nil {
		clk = clock.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watch{
		clock:    clk,
		deleteFn: deleteFn,
		log:      logging.Component(log, "story-watch"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Evaluate (re)checks the story shown in this slot. A different historyID
// resets all state. Already-expired stories are deleted synchronously under
// ctx; otherwise a one-shot timer is armed for the remaining time.
func (w *Watch) Evaluate(ctx context.Context, historyID string, createdAt time.Time) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if historyID != w.historyID {
		w.historyID = historyID
		w.expired = false
		w.deleting = false
		w.deleted = false
	}
	w.createdAt = createdAt
	w.stopTimerLocked()

	remaining := VisibilityWindow - w.clock.Since(createdAt)
	if remaining > 0 {
		w.expired = false
		w.timer = w.clock.AfterFunc(remaining, func() { w.fire(historyID) })
		w.mu.Unlock()
		return
	}

	w.expired = true
	w.mu.Unlock()
	w.tryDelete(ctx, historyID)
}

func (w *Watch) fire(historyID string) {
	w.mu.Lock()
	if w.closed || w.historyID != historyID {
		w.mu.Unlock()
		return
	}
	w.expired = true
	w.timer = nil
	w.mu.Unlock()
	w.tryDelete(w.ctx, historyID)
}

func (w *Watch) tryDelete(ctx context.Context, historyID string) {
	w.mu.Lock()
	if w.deleteFn == nil || w.deleting || w.deleted || w.historyID != historyID {
		w.mu.Unlock()
		return
	}
	w.deleting = true
	w.mu.Unlock()

	err := w.deleteFn(ctx, historyID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.historyID != historyID {
		return
	}
	w.deleting = false
	if err != nil {
		w.log.WithError(err).WithField("history_id", historyID).Error("failed to delete expired story")
		return
	}
	w.deleted = true
	w.log.WithField("history_id", historyID).Info("expired story deleted")
}

// Expired reports whether the current story's window has elapsed.
func (w *Watch) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// Deleted reports whether the current story was deleted successfully.
func (w *Watch) Deleted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleted
}

// Close cancels the pending timer and any in-flight delete.
func (w *Watch) Close() {
	w.mu.Lock()
	w.closed = true
	w.stopTimerLocked()
	w.mu.Unlock()
	w.cancel()
}

func (w *Watch) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
