package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/services"
)

// StoryHandler mounts and unmounts story expiry watches.
type StoryHandler struct {
	reaper *services.StoryReaper
	log    logrus.FieldLogger
}

// NewStoryHandler creates a new StoryHandler instance.
func NewStoryHandler(reaper *services.StoryReaper, log logrus.FieldLogger) *StoryHandler {
	return &StoryHandler{reaper: reaper, log: logging.Component(log, "story-handler")}
}

// Track handles POST /api/stories/track
// Evaluates a story's 48h window; expired stories are deleted upstream once.
func (h *StoryHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req models.TrackStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	createdAt, err := time.Parse(time.RFC3339, req.DateHistory)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: date_history must be RFC 3339", services.ErrValidation))
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.reaper.Track(r.Context(), req.Slot, req.HistoryID, createdAt, token)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, "tracked", status)
}

// Untrack handles DELETE /api/stories/track/{slot}
func (h *StoryHandler) Untrack(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if !h.reaper.Untrack(slot) {
		writeFailure(w, http.StatusNotFound, "slot not tracked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
