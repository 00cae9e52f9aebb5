package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// Notifier is told about every participant the sweep evicts.
type Notifier interface {
	NotifyTimeout(ctx context.Context, rec models.HeartbeatRecord) error
}

// Sweeper periodically evicts stale heartbeat records and announces them.
// It runs as a background goroutine for the lifetime of the process.
type Sweeper struct {
	registry Registry
	notifier Notifier
	clock    clock.WithTicker
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewSweeper creates a new sweeper.
// - interval: how often to sweep (60s in production)
// - timeout: how long a record may go without a heartbeat (45s in production)
func NewSweeper(registry Registry, notifier Notifier, clk clock.WithTicker, interval, timeout time.Duration, log logrus.FieldLogger) *Sweeper {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Sweeper{
		registry: registry,
		notifier: notifier,
		clock:    clk,
		interval: interval,
		timeout:  timeout,
		log:      logging.Component(log, "sweeper"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop and blocks until Stop is called or ctx ends.
// Call it with 'go'.
func (s *Sweeper) Start(ctx context.Context) {
	defer close(s.done)
	s.log.WithFields(logrus.Fields{"interval": s.interval, "timeout": s.timeout}).Info("sweeper started")

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.SweepOnce(ctx)
		case <-s.stopChan:
			s.log.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		}
	}
}

// Stop shuts the loop down and waits for an in-flight sweep to finish.
// It must only be called after Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

// SweepOnce evicts stale records and notifies for each one. A failing
// notification is logged and does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	log := s.log.WithField("sweep_id", uuid.NewString())

	expired, err := s.registry.Sweep(ctx, s.timeout)
	if err != nil {
		log.WithError(err).Error("sweep failed")
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	log.Infof("evicting %d stale heartbeats", len(expired))
	for _, rec := range expired {
		if err := s.notify(ctx, rec); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"participant_id": rec.ParticipantID,
				"channel_name":   rec.ChannelName,
				"role":           rec.Role,
			}).Error("timeout notification failed")
		}
	}
	return len(expired)
}

func (s *Sweeper) notify(ctx context.Context, rec models.HeartbeatRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	if s.notifier == nil {
		return nil
	}
	return s.notifier.NotifyTimeout(ctx, rec)
}

// ChannelCloser closes a channel upstream.
type ChannelCloser interface {
	CloseChannel(ctx context.Context, token string, req models.CloseChannelRequest) error
}

// EventPublisher pushes presence events to channel subscribers.
type EventPublisher interface {
	Publish(channelName string, event models.PresenceEvent)
}

// CleanupNotifier reacts to participants timing out.
//
// A female participant hosts the channel, so her timeout closes the channel
// upstream and is announced to subscribers. A male timeout is only logged.
// That asymmetry is kept as-is pending product clarification.
type CleanupNotifier struct {
	closer       ChannelCloser
	publisher    EventPublisher
	serviceToken string
	clock        clock.PassiveClock
	log          logrus.FieldLogger
}

// NewCleanupNotifier creates a notifier. closer and publisher may be nil.
func NewCleanupNotifier(closer ChannelCloser, publisher EventPublisher, serviceToken string, clk clock.PassiveClock, log logrus.FieldLogger) *CleanupNotifier {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &CleanupNotifier{
		closer:       closer,
		publisher:    publisher,
		serviceToken: serviceToken,
		clock:        clk,
		log:          logging.Component(log, "cleanup-notifier"),
	}
}

func (n *CleanupNotifier) NotifyTimeout(ctx context.Context, rec models.HeartbeatRecord) error {
	log := n.log.WithFields(logrus.Fields{
		"participant_id": rec.ParticipantID,
		"channel_name":   rec.ChannelName,
		"room_id":        rec.RoomID,
	})

	switch rec.Role {
	case models.RoleFemale:
		if n.publisher != nil {
			n.publisher.Publish(rec.ChannelName, models.PresenceEvent{
				Type:          models.PresenceEventTimeout,
				ChannelName:   rec.ChannelName,
				RoomID:        rec.RoomID,
				ParticipantID: rec.ParticipantID,
				Role:          rec.Role,
				Timestamp:     n.clock.Now().UnixMilli(),
			})
		}
		if n.closer == nil || n.serviceToken == "" {
			log.Warn("host timed out but no upstream closer is configured")
			return nil
		}
		err := n.closer.CloseChannel(ctx, n.serviceToken, models.CloseChannelRequest{
			RoomID:      rec.RoomID,
			ChannelName: rec.ChannelName,
			HostID:      rec.ParticipantID,
			Reason:      "heartbeat_timeout",
		})
		if err != nil {
			return fmt.Errorf("close channel %s: %w", rec.ChannelName, err)
		}
		log.Info("host timed out, channel closed")
	case models.RoleMale:
		log.Info("caller timed out")
	default:
		log.WithField("role", rec.Role).Debug("participant timed out")
	}
	return nil
}
