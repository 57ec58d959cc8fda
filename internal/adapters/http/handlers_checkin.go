package web

import (
	"errors"
	"net/http"
	"time"

	"gather/internal/application/orchestrators"
	"gather/internal/domain/attendance"
)

type checkInRequest struct {
	PersonID    string `json:"person_id" validate:"required,max=128"`
	PersonKind  string `json:"person_kind" validate:"required,oneof=member first_timer"`
	Method      string `json:"method" validate:"required,oneof=qr face"`
	ScanInstant string `json:"scan_instant,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// recordView is the wire form of an attendance record.
type recordView struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	PersonKind string    `json:"person_kind"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	Method     string    `json:"method"`
}

func newRecordView(rec attendance.Record) recordView {
	return recordView{
		ID:         rec.ID,
		PersonID:   rec.PersonID,
		PersonKind: rec.PersonKind,
		Timestamp:  rec.Timestamp.UTC(),
		Type:       string(rec.Type),
		Method:     rec.Method,
	}
}

// handleCheckIn handles POST /api/checkin from the kiosk scanners.
// A scan outside every window is a 422 with reason OUTSIDE_WINDOW and writes nothing.
// A scan_instant in the future or older than the buffer window is a 400.
func handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := orchestrators.CheckInInput{
		PersonID:   req.PersonID,
		PersonKind: req.PersonKind,
		Method:     req.Method,
	}
	if req.ScanInstant != "" {
		scan, err := time.Parse(time.RFC3339, req.ScanInstant)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scan_instant must be an RFC 3339 timestamp")
			return
		}
		input.ScanInstant = scan
	}

	rec, err := orchestrators.ExecuteCheckIn(r.Context(), input, orchestrators.CheckInDeps{
		ScheduleStore:   stores.ScheduleStore,
		AttendanceStore: stores.AttendanceStore,
		PersonStore:     stores.PersonStore,
		GenerateID:      generateID,
		Now:             timeNow,
	})
	if err != nil {
		var rej *orchestrators.RejectionError
		if errors.As(err, &rej) {
			appMetrics.CheckInRejected(rej.Reason)
		}
		writeDomainError(w, r, err)
		return
	}
	appMetrics.CheckIn(string(rec.Type), rec.PersonKind)
	writeJSON(w, http.StatusCreated, newRecordView(rec))
}
