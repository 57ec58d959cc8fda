package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gather/internal/adapters/errreport"
	"gather/internal/application/orchestrators"
	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// maxBodyBytes caps request bodies; every payload is a handful of short fields.
const maxBodyBytes = 16 << 10

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error, reports it, and returns a generic message.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal_error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	errreport.Error(r, err, nil)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeAndValidate decodes and validates a request body, writing a 400 on failure.
// POST: returns false after the response has been written
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := strictDecode(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		if fields := fieldErrors(err); fields != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
			return false
		}
		internalError(w, r, err)
		return false
	}
	return true
}

type errorBody struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorMapping orders known errors from most to least specific.
// An empty message means the error's own text is safe to show.
var errorMapping = []struct {
	target  error
	status  int
	message string
}{
	{orchestrators.ErrOutsideWindow, http.StatusUnprocessableEntity, ""},
	{orchestrators.ErrStorage, http.StatusServiceUnavailable, orchestrators.ErrStorage.Error()},
	{orchestrators.ErrPersonNotFound, http.StatusNotFound, ""},
	{sql.ErrNoRows, http.StatusNotFound, "not found"},
	{orchestrators.ErrNotEligible, http.StatusConflict, ""},
	{orchestrators.ErrPersonArchived, http.StatusConflict, ""},
	{orchestrators.ErrEmailTaken, http.StatusConflict, ""},
	{orchestrators.ErrScheduleContention, http.StatusConflict, ""},
	{orchestrators.ErrInvalidScanInstant, http.StatusBadRequest, ""},
	{person.ErrAlreadyMember, http.StatusConflict, ""},
	{person.ErrAlreadyArchived, http.StatusConflict, ""},
	{person.ErrNotArchived, http.StatusConflict, ""},
	{eventschedule.ErrInvalidSchedule, http.StatusBadRequest, ""},
	{eventschedule.ErrInvalidDate, http.StatusBadRequest, ""},
	{eventschedule.ErrEmptyDate, http.StatusBadRequest, ""},
	{attendance.ErrEmptyPersonID, http.StatusBadRequest, ""},
	{attendance.ErrInvalidKind, http.StatusBadRequest, ""},
	{attendance.ErrInvalidMethod, http.StatusBadRequest, ""},
	{person.ErrEmptyName, http.StatusBadRequest, ""},
	{person.ErrNameTooLong, http.StatusBadRequest, ""},
	{person.ErrInvalidEmail, http.StatusBadRequest, ""},
}

// writeDomainError maps err onto a status code; anything unknown is a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if !errors.Is(err, m.target) {
			continue
		}
		body := errorBody{Error: m.message}
		if body.Error == "" {
			body.Error = m.target.Error()
		}
		switch m.status {
		case http.StatusUnprocessableEntity:
			var rej *orchestrators.RejectionError
			if errors.As(err, &rej) {
				body.Reason = rej.Reason
			}
		case http.StatusServiceUnavailable:
			slog.Error("storage_error", "method", r.Method, "path", r.URL.Path, "error", err.Error())
			errreport.Error(r, err, nil)
			w.Header().Set("Retry-After", "1")
		case http.StatusConflict:
			body.Error = err.Error()
		}
		writeJSON(w, m.status, body)
		return
	}
	internalError(w, r, err)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// handleHealthz reports whether the schedule row is readable.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := stores.ScheduleStore.Get(r.Context()); err != nil {
		slog.Warn("health_check_failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDebugPerf serves the perf collector snapshot for the last ?minutes (default 60).
func handleDebugPerf(w http.ResponseWriter, r *http.Request) {
	minutes, err := queryInt(r, "minutes", 60)
	if err != nil || minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}
	top, err := queryInt(r, "top", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since := timeNow().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(since, top))
}
