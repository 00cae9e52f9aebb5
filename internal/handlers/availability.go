package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/upstream"
)

// AvailabilityChecker decides whether a host's channel can be joined.
type AvailabilityChecker interface {
	CheckAvailable(ctx context.Context, hostID, token string) (models.Availability, error)
}

// AvailabilityHandler serves the channel availability gate.
type AvailabilityHandler struct {
	gate AvailabilityChecker
	log  logrus.FieldLogger
}

// NewAvailabilityHandler creates a new AvailabilityHandler instance.
func NewAvailabilityHandler(gate AvailabilityChecker, log logrus.FieldLogger) *AvailabilityHandler {
	return &AvailabilityHandler{gate: gate, log: logging.Component(log, "availability-handler")}
}

// CheckAvailability handles GET /api/channels/availability?hostId=
// The body always carries {available, reason}; the status reflects
// whether the check itself could be performed.
func (h *AvailabilityHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		writeFailure(w, http.StatusBadRequest, "hostId is required")
		return
	}

	result, err := h.gate.CheckAvailable(r.Context(), hostID, bearerToken(r))
	if err == nil {
		writeSuccess(w, http.StatusOK, result.Reason, result)
		return
	}

	status := http.StatusBadGateway
	resp := Response{Message: result.Reason, Data: result}
	var (
		networkErr *upstream.NetworkError
		statusErr  *upstream.StatusError
	)
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.As(err, &networkErr):
		status = http.StatusServiceUnavailable
		resp.Retryable = true
	case errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden):
		status = statusErr.StatusCode
	}
	writeJSON(w, status, resp)
}
