package eventschedule

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Business rule constants
const (
	EventStartHour = 9 // event-day check-ins count as actual from 09:00 UTC
	PreRegLeadDays = 5 // pre-registration opens on the Tuesday before the Sunday event
)

// RegistrationType is the verdict Classify assigns to a check-in instant.
type RegistrationType string

const (
	PreRegistration RegistrationType = "pre_registration"
	Actual          RegistrationType = "actual"
)

// Domain errors
var (
	ErrInvalidSchedule = errors.New("pre-registration date must be before event date")
	ErrEmptyDate       = errors.New("schedule dates cannot be zero")
	ErrInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
)

// Schedule is the current pre-registration window and event date.
// Both dates are calendar dates held as UTC midnight.
type Schedule struct {
	PreRegStartDate time.Time
	EventDate       time.Time
}

// New builds a Schedule from two calendar dates.
// PRE: preReg and event carry the intended calendar day in UTC
// POST: Returns a normalised, validated Schedule or ErrInvalidSchedule
func New(preReg, event time.Time) (Schedule, error) {
	s := Schedule{PreRegStartDate: DateOf(preReg), EventDate: DateOf(event)}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Parse builds a Schedule from two YYYY-MM-DD strings.
func Parse(preReg, event string) (Schedule, error) {
	p, err := ParseDate(preReg)
	if err != nil {
		return Schedule{}, err
	}
	e, err := ParseDate(event)
	if err != nil {
		return Schedule{}, err
	}
	return New(p, e)
}

// Validate checks the schedule invariant.
// PRE: Schedule struct is populated
// POST: Returns nil if PreRegStartDate < EventDate, error otherwise
func (s Schedule) Validate() error {
	if s.PreRegStartDate.IsZero() || s.EventDate.IsZero() {
		return ErrEmptyDate
	}
	if !DateOf(s.PreRegStartDate).Before(DateOf(s.EventDate)) {
		return ErrInvalidSchedule
	}
	return nil
}

// PreRegStart is the inclusive start of the pre-registration window.
func (s Schedule) PreRegStart() time.Time {
	return DateOf(s.PreRegStartDate)
}

// EventStart is the instant check-ins stop counting as pre-registration.
func (s Schedule) EventStart() time.Time {
	return DateOf(s.EventDate).Add(EventStartHour * time.Hour)
}

// Classify maps a check-in instant to a registration type.
// Instants before the pre-registration window return ok=false.
// INVARIANT: total and deterministic; never mutates s
func (s Schedule) Classify(scan time.Time) (RegistrationType, bool) {
	scan = scan.UTC()
	if scan.Before(s.PreRegStart()) {
		return "", false
	}
	if scan.Before(s.EventStart()) {
		return PreRegistration, true
	}
	return Actual, true
}

// Equal reports whether both schedules name the same calendar dates.
func (s Schedule) Equal(o Schedule) bool {
	return DateOf(s.PreRegStartDate).Equal(DateOf(o.PreRegStartDate)) &&
		DateOf(s.EventDate).Equal(DateOf(o.EventDate))
}

// String renders the schedule as "preReg..event".
func (s Schedule) String() string {
	return fmt.Sprintf("%s..%s", FormatDate(s.PreRegStartDate), FormatDate(s.EventDate))
}

// Rollover advances an expired schedule to the next weekly occurrence.
// PRE: today is any instant; only its UTC calendar day is used
// POST: If today <= EventDate the input is returned with rolled=false;
// otherwise the schedule for the nearest Sunday on or after today is returned
func Rollover(s Schedule, today time.Time) (Schedule, bool) {
	day := DateOf(today)
	if !day.After(DateOf(s.EventDate)) {
		return s, false
	}
	return ForWeekOf(day), true
}

// ForWeekOf returns the schedule whose event is the nearest Sunday on or after day.
func ForWeekOf(day time.Time) Schedule {
	event := NextSunday(day)
	return Schedule{
		PreRegStartDate: event.AddDate(0, 0, -PreRegLeadDays),
		EventDate:       event,
	}
}

// NextSunday returns day itself if it is a Sunday, else the following Sunday.
func NextSunday(day time.Time) time.Time {
	d := DateOf(day)
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// FormatDate renders the UTC calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
