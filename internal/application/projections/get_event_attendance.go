package projections

import (
	"context"
	"time"

	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

// EventAttendanceReader reads records in a time range.
type EventAttendanceReader interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]attendance.Record, error)
}

// GetEventAttendanceQuery names the schedule to summarise.
type GetEventAttendanceQuery struct {
	Schedule eventschedule.Schedule
}

// GetEventAttendanceDeps holds dependencies for the event summary.
type GetEventAttendanceDeps struct {
	AttendanceStore EventAttendanceReader
}

// KindCounts counts distinct people by kind.
type KindCounts struct {
	Members     int
	FirstTimers int
}

// Total is the number of distinct people counted.
func (k KindCounts) Total() int {
	return k.Members + k.FirstTimers
}

// EventAttendanceResult summarises one week's check-ins.
type EventAttendanceResult struct {
	Schedule      eventschedule.Schedule
	PreRegistered KindCounts // distinct people with a pre_registration record in the window
	Attended      KindCounts // distinct people with an actual record in the window
	Scans         int        // raw records in the window, duplicates included
}

// QueryGetEventAttendance counts distinct people per registration type for the given schedule.
// PRE: Schedule is valid
// POST: each person counts at most once per type
// INVARIANT: records are bucketed by their stored type, never reclassified
func QueryGetEventAttendance(ctx context.Context, query GetEventAttendanceQuery, deps GetEventAttendanceDeps) (EventAttendanceResult, error) {
	s := query.Schedule
	end := eventschedule.DateOf(s.EventDate).AddDate(0, 0, 1)

	records, err := deps.AttendanceStore.ListBetween(ctx, s.PreRegStart(), end)
	if err != nil {
		return EventAttendanceResult{}, storageErr("load event records", err)
	}

	result := EventAttendanceResult{Schedule: s, Scans: len(records)}
	preSeen := make(map[string]bool)
	actualSeen := make(map[string]bool)
	for _, r := range records {
		seen, counts := preSeen, &result.PreRegistered
		if r.IsActual() {
			seen, counts = actualSeen, &result.Attended
		}
		if seen[r.PersonID] {
			continue
		}
		seen[r.PersonID] = true
		if r.PersonKind == person.KindFirstTimer {
			counts.FirstTimers++
		} else {
			counts.Members++
		}
	}
	return result, nil
}
