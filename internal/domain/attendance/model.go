package attendance

import (
	"errors"
	"time"

	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

// Check-in methods supplied by the scanning collaborator.
const (
	MethodQR   = "qr"
	MethodFace = "face"
)

// Domain errors
var (
	ErrEmptyPersonID = errors.New("attendance must be associated with a person")
	ErrInvalidKind   = errors.New("person kind must be 'member' or 'first_timer'")
	ErrInvalidMethod = errors.New("method must be 'qr' or 'face'")
	ErrInvalidType   = errors.New("type must be 'pre_registration' or 'actual'")
	ErrZeroTimestamp = errors.New("timestamp must be set")
	ErrEmptyRecordID = errors.New("attendance record ID cannot be empty")
)

// Record is one accepted check-in. Records are append-only and never mutated.
type Record struct {
	ID         string
	PersonID   string
	PersonKind string
	Timestamp  time.Time // UTC
	Type       eventschedule.RegistrationType
	Method     string
}

// Validate checks if the Record has valid data.
// PRE: Record struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrEmptyRecordID
	}
	if r.PersonID == "" {
		return ErrEmptyPersonID
	}
	if !person.ValidKind(r.PersonKind) {
		return ErrInvalidKind
	}
	if !ValidMethod(r.Method) {
		return ErrInvalidMethod
	}
	if r.Type != eventschedule.PreRegistration && r.Type != eventschedule.Actual {
		return ErrInvalidType
	}
	if r.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// ValidMethod reports whether method is a known check-in method.
func ValidMethod(method string) bool {
	return method == MethodQR || method == MethodFace
}

// Day returns the UTC calendar day of the check-in as YYYY-MM-DD.
func (r Record) Day() string {
	return eventschedule.FormatDate(r.Timestamp)
}

// IsActual returns true for event-day check-ins.
func (r Record) IsActual() bool {
	return r.Type == eventschedule.Actual
}
