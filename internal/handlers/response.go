package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/services"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/upstream"
)

// AuthCookie is the cookie carrying the upstream bearer token.
const AuthCookie = "auth_token"

// Response is the envelope every API route returns.
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// writeJSON is a helper function to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// writeError maps an error onto an HTTP status and failure envelope.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		statusErr  *upstream.StatusError
		networkErr *upstream.NetworkError
	)
	switch {
	case errors.Is(err, services.ErrValidation):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, upstream.ErrUnauthorized):
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &networkErr):
		msg := "upstream service unreachable, please retry"
		if networkErr.Timeout {
			msg = "upstream service timed out, please retry"
		}
		writeJSON(w, http.StatusServiceUnavailable, Response{Message: msg, Retryable: true})
	case errors.As(err, &statusErr):
		status := statusErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		writeFailure(w, status, statusErr.Message)
	case errors.Is(err, upstream.ErrMalformedResponse):
		writeFailure(w, http.StatusBadGateway, "malformed upstream response")
	default:
		log.WithError(err).Error("unhandled internal error")
		writeFailure(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}

// bearerToken returns the upstream token from the auth cookie, or "".
func bearerToken(r *http.Request) string {
	cookie, err := r.Cookie(AuthCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
