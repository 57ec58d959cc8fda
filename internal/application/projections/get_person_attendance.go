package projections

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gather/internal/domain/attendance"
	"gather/internal/domain/person"
	"gather/internal/domain/promotion"
)

// PersonAttendanceReader reads one person's records newest first.
type PersonAttendanceReader interface {
	ListByPersonID(ctx context.Context, personID string) ([]attendance.Record, error)
}

// GetPersonAttendanceQuery carries input for a person's history.
type GetPersonAttendanceQuery struct {
	PersonID string
}

// GetPersonAttendanceDeps holds dependencies for a person's history.
type GetPersonAttendanceDeps struct {
	PersonStore     PersonLookup
	AttendanceStore PersonAttendanceReader
}

// PersonAttendanceResult is a person with their check-in history.
type PersonAttendanceResult struct {
	Person           person.Person
	Records          []attendance.Record // newest first
	UniqueActualDays int
	LastCheckIn      time.Time // zero if never
}

// QueryGetPersonAttendance returns a person's records and unique event-day count.
// PRE: PersonID is non-empty
// POST: Returns an error wrapping sql.ErrNoRows if the person is unknown;
// other read failures wrap ErrStorage
func QueryGetPersonAttendance(ctx context.Context, query GetPersonAttendanceQuery, deps GetPersonAttendanceDeps) (PersonAttendanceResult, error) {
	p, err := deps.PersonStore.GetByID(ctx, query.PersonID)
	if errors.Is(err, sql.ErrNoRows) {
		return PersonAttendanceResult{}, err
	}
	if err != nil {
		return PersonAttendanceResult{}, storageErr("load person", err)
	}
	records, err := deps.AttendanceStore.ListByPersonID(ctx, p.ID)
	if err != nil {
		return PersonAttendanceResult{}, storageErr("load person records", err)
	}
	if records == nil {
		records = []attendance.Record{}
	}

	result := PersonAttendanceResult{
		Person:           p,
		Records:          records,
		UniqueActualDays: promotion.UniqueActualDays(records, p.ID),
	}
	if len(records) > 0 {
		result.LastCheckIn = records[0].Timestamp
	}
	return result, nil
}
