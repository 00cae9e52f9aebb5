package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/services"
)

// PresenceHandler contains the heartbeat ingest and snapshot endpoints.
type PresenceHandler struct {
	registry services.Registry
	clock    clock.PassiveClock
	log      logrus.FieldLogger
}

// NewPresenceHandler creates a new PresenceHandler instance.
func NewPresenceHandler(registry services.Registry, clk clock.PassiveClock, log logrus.FieldLogger) *PresenceHandler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &PresenceHandler{registry: registry, clock: clk, log: logging.Component(log, "presence-handler")}
}

// Heartbeat handles POST /api/heartbeat
// Records or refreshes the caller's presence in a channel.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.registry.Record(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, "heartbeat recorded", models.HeartbeatResponse{
		ActiveCount: count,
		Timestamp:   h.clock.Now().UnixMilli(),
	})
}

// ListHeartbeats handles GET /api/heartbeat
// Returns every live record with its age in seconds.
func (h *PresenceHandler) ListHeartbeats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.registry.Snapshot(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeSuccess(w, http.StatusOK, "ok", models.HeartbeatListResponse{
		ActiveCount: len(snapshot),
		Heartbeats:  snapshot,
		Timestamp:   h.clock.Now().UnixMilli(),
	})
}
