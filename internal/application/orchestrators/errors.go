package orchestrators

import (
	"errors"
	"fmt"
	"time"

	"gather/internal/domain/eventschedule"
)

// ReasonOutsideWindow is the machine-readable code for a scan outside any check-in window.
const ReasonOutsideWindow = "OUTSIDE_WINDOW"

// Orchestrator errors
var (
	ErrOutsideWindow      = errors.New("check-in not open at this time")
	ErrStorage            = errors.New("something went wrong, please try again")
	ErrNotEligible        = errors.New("first-timer has not attended enough events")
	ErrPersonArchived     = errors.New("archived people cannot be promoted")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrScheduleContention = errors.New("schedule was changed by someone else, please reload")
	ErrInvalidScanInstant = errors.New("scan_instant must be within the last 15 minutes and not in the future")
)

// RejectionError describes a check-in refused without any write.
// It unwraps to ErrOutsideWindow.
type RejectionError struct {
	Reason      string
	ScanInstant time.Time
	Schedule    eventschedule.Schedule
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("check-in rejected (%s): scan at %s is before pre-registration opens at %s",
		e.Reason, e.ScanInstant.UTC().Format(time.RFC3339), e.Schedule.PreRegStart().Format(time.RFC3339))
}

func (e *RejectionError) Unwrap() error {
	return ErrOutsideWindow
}

// storageErr marks err as a retryable storage failure while keeping the cause inspectable.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
