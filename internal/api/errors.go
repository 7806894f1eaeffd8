package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"scams/internal/database"
	"scams/internal/service"
)

// writeServiceError maps service and database errors to HTTP responses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	var cerr *service.ConflictError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                cerr.Error(),
			"has_conflict":         true,
			"conflicting_bookings": cerr.Result.Conflicting,
			"alternative_rooms":    cerr.Alternatives,
		})
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrInactiveAccount):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrRoomBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "booking was changed by someone else, reload and try again")
	case errors.Is(err, database.ErrRoomHasBookings):
		writeError(w, http.StatusConflict, "room has bookings and cannot be deleted")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter. Empty yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
