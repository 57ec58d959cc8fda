package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

// Bounds on a scanner-supplied scan instant relative to processing time.
const (
	MaxScanSkew = 2 * time.Minute  // scanner clock may run this far ahead
	MaxScanAge  = 15 * time.Minute // oldest buffered scan still accepted
)

// ScheduleReader is the read-only schedule access check-in needs.
type ScheduleReader interface {
	Get(ctx context.Context) (eventschedule.Schedule, error)
}

// AttendanceAppender defines the append-only attendance persistence.
type AttendanceAppender interface {
	Append(ctx context.Context, r attendance.Record) error
}

// PersonReader resolves the stored kind of a scanned person.
type PersonReader interface {
	GetByID(ctx context.Context, id string) (person.Person, error)
}

// CheckInInput carries what the scanning collaborator resolved.
// PersonID and PersonKind come from QR decode or face match upstream.
type CheckInInput struct {
	PersonID    string
	PersonKind  string
	Method      string
	ScanInstant time.Time // zero means "now"; otherwise within [now-MaxScanAge, now+MaxScanSkew]
}

// CheckInDeps holds dependencies for CheckIn.
type CheckInDeps struct {
	ScheduleStore   ScheduleReader
	AttendanceStore AttendanceAppender
	PersonStore     PersonReader // optional: the stored kind overrides the scanner's
	GenerateID      func() string
	Now             func() time.Time
}

// ExecuteCheckIn classifies a scan against the current schedule and records it.
// PRE: PersonID identifies a person resolved upstream; Method is qr or face
// POST: exactly one record appended on success; nothing written on rejection
// INVARIANT: the schedule is read as-is; rollover only happens on schedule load
func ExecuteCheckIn(ctx context.Context, input CheckInInput, deps CheckInDeps) (attendance.Record, error) {
	if input.PersonID == "" {
		return attendance.Record{}, attendance.ErrEmptyPersonID
	}
	if !person.ValidKind(input.PersonKind) {
		return attendance.Record{}, attendance.ErrInvalidKind
	}
	if !attendance.ValidMethod(input.Method) {
		return attendance.Record{}, attendance.ErrInvalidMethod
	}

	now := nowOr(deps.Now).UTC()
	scan := input.ScanInstant
	if scan.IsZero() {
		scan = now
	}
	if scan.After(now.Add(MaxScanSkew)) || scan.Before(now.Add(-MaxScanAge)) {
		return attendance.Record{}, ErrInvalidScanInstant
	}

	kind, err := resolveKind(ctx, deps.PersonStore, input.PersonID, input.PersonKind)
	if err != nil {
		return attendance.Record{}, err
	}

	sched, err := deps.ScheduleStore.Get(ctx)
	if err != nil {
		return attendance.Record{}, storageErr("read schedule", err)
	}

	typ, ok := sched.Classify(scan)
	if !ok {
		slog.Info("checkin_event", "event", "check_in_rejected", "person_id", input.PersonID, "reason", ReasonOutsideWindow, "schedule", sched.String())
		return attendance.Record{}, &RejectionError{Reason: ReasonOutsideWindow, ScanInstant: scan, Schedule: sched}
	}

	generateID := deps.GenerateID
	if generateID == nil {
		generateID = func() string { return uuid.New().String() }
	}

	r := attendance.Record{
		ID:         generateID(),
		PersonID:   input.PersonID,
		PersonKind: kind,
		Timestamp:  now,
		Type:       typ,
		Method:     input.Method,
	}
	if err := r.Validate(); err != nil {
		return attendance.Record{}, err
	}

	if err := deps.AttendanceStore.Append(ctx, r); err != nil {
		return attendance.Record{}, storageErr("append attendance", err)
	}

	slog.Info("checkin_event", "event", "check_in_accepted", "person_id", r.PersonID, "person_kind", r.PersonKind, "type", r.Type, "method", r.Method)
	return r, nil
}

// resolveKind prefers the stored kind so a promoted member scanned with a stale
// first-timer code no longer feeds first-timer records.
// POST: unknown people keep the scanner's kind
func resolveKind(ctx context.Context, people PersonReader, personID, scanned string) (string, error) {
	if people == nil {
		return scanned, nil
	}
	p, err := people.GetByID(ctx, personID)
	if errors.Is(err, sql.ErrNoRows) {
		return scanned, nil
	}
	if err != nil {
		return "", storageErr("load person", err)
	}
	if p.Kind != scanned {
		slog.Warn("checkin_event", "event", "person_kind_corrected", "person_id", personID, "scanned", scanned, "stored", p.Kind)
	}
	return p.Kind, nil
}
