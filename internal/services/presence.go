package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// Registry stores per-participant liveness records for active call channels.
// Implementations serialize Record, Snapshot and Sweep with respect to each other.
type Registry interface {
	// Record inserts or refreshes the record for (participant, channel) and
	// returns the number of live records.
	Record(ctx context.Context, req models.HeartbeatRequest) (int, error)

	// Snapshot returns every live record with its age. It never mutates.
	Snapshot(ctx context.Context) ([]models.HeartbeatSnapshot, error)

	// Sweep removes records not refreshed within timeout and returns them.
	Sweep(ctx context.Context, timeout time.Duration) ([]models.HeartbeatRecord, error)
}

// validateHeartbeat checks the required heartbeat fields
func validateHeartbeat(req models.HeartbeatRequest) error {
	switch {
	case req.ParticipantID == "":
		return fmt.Errorf("%w: participant_id is required", ErrValidation)
	case req.ChannelName == "":
		return fmt.Errorf("%w: channel_name is required", ErrValidation)
	case req.Role == "":
		return fmt.Errorf("%w: role is required", ErrValidation)
	case !req.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}
	return nil
}

// newRecord builds the record stored for a heartbeat received at now
func newRecord(req models.HeartbeatRequest, now time.Time) models.HeartbeatRecord {
	reported := now
	if req.Timestamp != nil {
		reported = time.UnixMilli(*req.Timestamp).UTC()
	}
	return models.HeartbeatRecord{
		ParticipantID: req.ParticipantID,
		ChannelName:   req.ChannelName,
		RoomID:        req.RoomID,
		Role:          req.Role,
		ReportedAt:    reported,
		LastSeen:      now,
	}
}

func snapshotOf(rec models.HeartbeatRecord, now time.Time) models.HeartbeatSnapshot {
	age := now.Sub(rec.LastSeen)
	if age < 0 {
		age = 0
	}
	return models.HeartbeatSnapshot{HeartbeatRecord: rec, SecondsSinceLastSeen: int64(age / time.Second)}
}

func sortSnapshots(out []models.HeartbeatSnapshot) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelName != out[j].ChannelName {
			return out[i].ChannelName < out[j].ChannelName
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
}

// MemoryRegistry is a process-local Registry backed by a mutex-guarded map.
// Its contents do not survive a restart and are not shared between instances.
type MemoryRegistry struct {
	clock   clock.PassiveClock
	mu      sync.Mutex
	records map[string]models.HeartbeatRecord
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(clk clock.PassiveClock) *MemoryRegistry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryRegistry{
		clock:   clk,
		records: make(map[string]models.HeartbeatRecord),
	}
}

func (r *MemoryRegistry) Record(ctx context.Context, req models.HeartbeatRequest) (int, error) {
	if err := validateHeartbeat(req); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	rec := newRecord(req, now)
	// last_seen never moves backwards for a live key
	if prev, ok := r.records[rec.Key()]; ok && prev.LastSeen.After(now) {
		rec.LastSeen = prev.LastSeen
	}
	r.records[rec.Key()] = rec
	return len(r.records), nil
}

func (r *MemoryRegistry) Snapshot(ctx context.Context) ([]models.HeartbeatSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	out := make([]models.HeartbeatSnapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, snapshotOf(rec, now))
	}
	sortSnapshots(out)
	return out, nil
}

func (r *MemoryRegistry) Sweep(ctx context.Context, timeout time.Duration) ([]models.HeartbeatRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().UTC()
	var expired []models.HeartbeatRecord
	for key, rec := range r.records {
		if now.Sub(rec.LastSeen) > timeout {
			expired = append(expired, rec)
			delete(r.records, key)
		}
	}
	return expired, nil
}

// Len returns the number of live records.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
