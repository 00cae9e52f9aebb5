package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/upstream"
)

// Availability reasons. A room status mismatch uses "room status is <status>".
const (
	ReasonAvailable    = "available"
	ReasonUnauthorized = "unauthorized"
	ReasonServiceError = "service error"
	ReasonNotFound     = "not found"
	ReasonOccupied     = "occupied"
)

// RoomLister lists upstream rooms.
type RoomLister interface {
	ListRooms(ctx context.Context, token string, filter models.RoomFilter) ([]models.Room, error)
}

// AvailabilityGate decides whether a host's channel can be joined. It holds no state.
type AvailabilityGate struct {
	rooms RoomLister
	log   logrus.FieldLogger
}

// NewAvailabilityGate creates a gate backed by the given room lister.
func NewAvailabilityGate(rooms RoomLister, log logrus.FieldLogger) *AvailabilityGate {
	return &AvailabilityGate{rooms: rooms, log: logging.Component(log, "availability")}
}

// CheckAvailable fails closed. The first failing check decides the reason:
// missing token, upstream failure, no room, occupied room, wrong status.
// The returned error is the upstream failure, if any, so callers can map it.
func (g *AvailabilityGate) CheckAvailable(ctx context.Context, hostID, token string) (models.Availability, error) {
	if token == "" {
		return models.Availability{Reason: ReasonUnauthorized}, upstream.ErrUnauthorized
	}

	rooms, err := g.rooms.ListRooms(ctx, token, models.RoomFilter{Status: models.RoomStatusWaiting, HostID: hostID})
	if err != nil {
		g.log.WithError(err).WithField("host_id", hostID).Warn("room lookup failed")
		if errors.Is(err, upstream.ErrUnauthorized) {
			return models.Availability{Reason: ReasonUnauthorized}, err
		}
		return models.Availability{Reason: ReasonServiceError}, err
	}

	room := findHostRoom(rooms, hostID)
	switch {
	case room == nil:
		return models.Availability{Reason: ReasonNotFound}, nil
	case room.AnotherUserID != nil:
		return models.Availability{Reason: ReasonOccupied}, nil
	case room.Status != models.RoomStatusWaiting:
		return models.Availability{Reason: fmt.Sprintf("room status is %s", room.Status)}, nil
	}
	return models.Availability{Available: true, Reason: ReasonAvailable}, nil
}

// findHostRoom picks the room hosted by hostID; the upstream filter is not trusted.
func findHostRoom(rooms []models.Room, hostID string) *models.Room {
	for i := range rooms {
		if rooms[i].HostID == hostID {
			return &rooms[i]
		}
	}
	return nil
}
