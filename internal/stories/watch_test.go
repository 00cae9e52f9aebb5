package stories

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type deleteRecorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *deleteRecorder) delete(ctx context.Context, historyID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, historyID)
	return d.err
}

func (d *deleteRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *deleteRecorder) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestWatch_ExpiredStoryDeletedOnce(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	rec := &deleteRecorder{}
	w := NewWatch(clk, rec.delete, quietLogger())
	defer w.Close()

	created := clk.Now().Add(-49 * time.Hour)
	for i := 0; i < 5; i++ {
		w.Evaluate(context.Background(), "story-1", created)
	}

	assert.True(t, w.Expired())
	assert.True(t, w.Deleted())
	assert.Equal(t, 1, rec.count())
}

func TestWatch_FreshStoryArmsTimer(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	rec := &deleteRecorder{}
	w := NewWatch(clk, rec.delete, quietLogger())
	defer w.Close()

	w.Evaluate(context.Background(), "story-1", clk.Now().Add(-time.Hour))

	assert.False(t, w.Expired())
	assert.Equal(t, 0, rec.count())
	assert.True(t, clk.HasWaiters())

	clk.Step(46*time.Hour + time.Minute)
	assert.Eventually(t, func() bool { return rec.count() == 0 && !w.Expired() }, time.Second, 5*time.Millisecond)

	clk.Step(time.Hour)
	assert.Eventually(t, func() bool { return w.Deleted() }, time.Second, 5*time.Millisecond)
	assert.True(t, w.Expired())
	assert.Equal(t, 1, rec.count())
}

func TestWatch_FailedDeleteRetriesOnNextEvaluation(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	rec := &deleteRecorder{err: errors.New("upstream down")}
	w := NewWatch(clk, rec.delete, quietLogger())
	defer w.Close()

	created := clk.Now().Add(-49 * time.Hour)
	w.Evaluate(context.Background(), "story-1", created)
	require.Equal(t, 1, rec.count())
	assert.True(t, w.Expired())
	assert.False(t, w.Deleted())

	rec.setErr(nil)
	w.Evaluate(context.Background(), "story-1", created)
	assert.Equal(t, 2, rec.count())
	assert.True(t, w.Deleted())

	w.Evaluate(context.Background(), "story-1", created)
	assert.Equal(t, 2, rec.count())
}

func TestWatch_NewHistoryIDResetsState(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	rec := &deleteRecorder{}
	w := NewWatch(clk, rec.delete, quietLogger())
	defer w.Close()

	w.Evaluate(context.Background(), "story-1", clk.Now().Add(-49*time.Hour))
	require.True(t, w.Deleted())

	w.Evaluate(context.Background(), "story-2", clk.Now().Add(-time.Hour))
	assert.False(t, w.Deleted())
	assert.False(t, w.Expired())

	w.Evaluate(context.Background(), "story-3", clk.Now().Add(-50*time.Hour))
	assert.True(t, w.Deleted())
	assert.Equal(t, []string{"story-1", "story-3"}, rec.calls)
}

func TestWatch_CloseCancelsTimer(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	rec := &deleteRecorder{}
	w := NewWatch(clk, rec.delete, quietLogger())

	w.Evaluate(context.Background(), "story-1", clk.Now())
	w.Close()

	assert.False(t, clk.HasWaiters())
	clk.Step(49 * time.Hour)
	assert.Never(t, func() bool { return rec.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestWatch_NilDeleteOnlyTracksExpiry(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	w := NewWatch(clk, nil, quietLogger())
	defer w.Close()

	w.Evaluate(context.Background(), "story-1", clk.Now().Add(-48*time.Hour))

	assert.True(t, w.Expired())
	assert.False(t, w.Deleted())
}
