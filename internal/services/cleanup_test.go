package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyTimeout(ctx context.Context, rec models.HeartbeatRecord) error {
	return m.Called(ctx, rec.ParticipantID).Error(0)
}

type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) CloseChannel(ctx context.Context, token string, req models.CloseChannelRequest) error {
	return m.Called(ctx, token, req).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PresenceEvent
}

func (p *recordingPublisher) Publish(channelName string, event models.PresenceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// stopCountingClock records Stop on its tickers; FakeClock tickers never
// unregister, so HasWaiters cannot tell a stopped loop from a live one.
type stopCountingClock struct {
	*testingclock.FakeClock
	stopped atomic.Int32
}

func (c *stopCountingClock) NewTicker(d time.Duration) clock.Ticker {
	return &stopCountingTicker{Ticker: c.FakeClock.NewTicker(d), stopped: &c.stopped}
}

type stopCountingTicker struct {
	clock.Ticker
	stopped *atomic.Int32
}

func (t *stopCountingTicker) Stop() {
	t.stopped.Add(1)
	t.Ticker.Stop()
}

func TestSweeper_NotificationFailureDoesNotAbortSweep(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	reg := NewMemoryRegistry(clk)
	ctx := context.Background()
	for _, p := range []string{"a", "b", "c"} {
		_, err := reg.Record(ctx, heartbeat(p, "ch", models.RoleFemale))
		require.NoError(t, err)
	}

	notifier := new(mockNotifier)
	notifier.On("NotifyTimeout", ctx, "a").Return(nil).Once()
	notifier.On("NotifyTimeout", ctx, "b").Return(errors.New("upstream down")).Once()
	notifier.On("NotifyTimeout", ctx, "c").Return(nil).Once()

	sweeper := NewSweeper(reg, notifier, clk, time.Minute, 45*time.Second, quietLogger())
	clk.Step(46 * time.Second)

	assert.Equal(t, 3, sweeper.SweepOnce(ctx))
	assert.Equal(t, 0, reg.Len())
	notifier.AssertExpectations(t)
}

func TestSweeper_RecoversFromNotifierPanic(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Now())
	reg := NewMemoryRegistry(clk)
	ctx := context.Background()
	_, err := reg.Record(ctx, heartbeat("a", "ch", models.RoleFemale))
	require.NoError(t, err)

	notifier := new(mockNotifier)
	notifier.On("NotifyTimeout", ctx, "a").Run(func(mock.Arguments) { panic("boom") }).Return(nil)

	sweeper := NewSweeper(reg, notifier, clk, time.Minute, 45*time.Second, quietLogger())
	clk.Step(time.Minute)

	assert.NotPanics(t, func() { sweeper.SweepOnce(ctx) })
	assert.Equal(t, 0, reg.Len())
}

func TestSweeper_TickerDrivesSweeps(t *testing.T) {
	clk := &stopCountingClock{FakeClock: testingclock.NewFakeClock(time.Now())}
	reg := NewMemoryRegistry(clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := reg.Record(ctx, heartbeat("a", "ch", models.RoleMale))
	require.NoError(t, err)

	sweeper := NewSweeper(reg, nil, clk, time.Minute, 45*time.Second, quietLogger())
	go sweeper.Start(ctx)
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)

	clk.Step(time.Minute)
	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)

	sweeper.Stop()
	assert.Equal(t, int32(1), clk.stopped.Load())
	select {
	case <-sweeper.done:
	default:
		t.Fatal("sweep loop still running after Stop")
	}
}

func TestSweeper_ContextCancelEndsLoop(t *testing.T) {
	clk := &stopCountingClock{FakeClock: testingclock.NewFakeClock(time.Now())}
	sweeper := NewSweeper(NewMemoryRegistry(clk), nil, clk, time.Minute, 45*time.Second, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	go sweeper.Start(ctx)
	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	cancel()

	select {
	case <-sweeper.done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not exit on context cancel")
	}
	assert.Equal(t, int32(1), clk.stopped.Load())
}

func TestCleanupNotifier_FemaleClosesChannelAndPublishes(t *testing.T) {
	clk := testingclock.NewFakeClock(time.UnixMilli(1_700_000_000_000))
	closer := new(mockCloser)
	publisher := &recordingPublisher{}
	ctx := context.Background()
	rec := models.HeartbeatRecord{ParticipantID: "host-1", ChannelName: "ch", RoomID: "9", Role: models.RoleFemale}

	closer.On("CloseChannel", ctx, "svc-token", models.CloseChannelRequest{
		RoomID: "9", ChannelName: "ch", HostID: "host-1", Reason: "heartbeat_timeout",
	}).Return(nil).Once()

	n := NewCleanupNotifier(closer, publisher, "svc-token", clk, quietLogger())
	require.NoError(t, n.NotifyTimeout(ctx, rec))

	closer.AssertExpectations(t)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.PresenceEventTimeout, publisher.events[0].Type)
	assert.Equal(t, int64(1_700_000_000_000), publisher.events[0].Timestamp)
}

func TestCleanupNotifier_FemaleCloseFailureReturned(t *testing.T) {
	closer := new(mockCloser)
	closer.On("CloseChannel", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom"))

	n := NewCleanupNotifier(closer, nil, "svc-token", nil, quietLogger())
	err := n.NotifyTimeout(context.Background(), models.HeartbeatRecord{ParticipantID: "h", ChannelName: "ch", Role: models.RoleFemale})

	assert.Error(t, err)
}

func TestCleanupNotifier_MaleOnlyLogs(t *testing.T) {
	closer := new(mockCloser)
	publisher := &recordingPublisher{}

	n := NewCleanupNotifier(closer, publisher, "svc-token", nil, quietLogger())
	err := n.NotifyTimeout(context.Background(), models.HeartbeatRecord{ParticipantID: "u", ChannelName: "ch", Role: models.RoleMale})

	assert.NoError(t, err)
	closer.AssertNotCalled(t, "CloseChannel", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, publisher.events)
}
