package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"battlefield/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Warnf("encode response: %v", err)
		}
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}

var errStatus = map[error]int{
	services.ErrValidation:             http.StatusBadRequest,
	services.ErrBelowMinimum:           http.StatusBadRequest,
	services.ErrInsufficientBalance:    http.StatusPaymentRequired,
	services.ErrMatchFull:              http.StatusConflict,
	services.ErrAlreadyJoined:          http.StatusConflict,
	services.ErrMatchNotJoinable:       http.StatusConflict,
	services.ErrMatchNotActive:         http.StatusConflict,
	services.ErrResultAlreadySubmitted: http.StatusConflict,
	services.ErrDuplicatePending:       http.StatusConflict,
	services.ErrInvalidTransition:      http.StatusConflict,
	services.ErrOutsideWindow:          http.StatusForbidden,
	services.ErrNotEntrant:             http.StatusForbidden,
	services.ErrForbidden:              http.StatusForbidden,
	services.ErrNotVerified:            http.StatusConflict,
}

// respondError maps business rule failures to specific 4xx statuses.
// Anything unrecognized is treated as transient and never leaks internals.
func respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		respondMessage(w, http.StatusNotFound, "not found")
		return
	}
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			respondMessage(w, status, err.Error())
			return
		}
	}
	log.Warnf("request failed: %v", err)
	respondMessage(w, http.StatusServiceUnavailable, "please try again")
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func valueToString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
