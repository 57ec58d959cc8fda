package orchestrators

import (
	"context"
	"log/slog"

	"gather/internal/domain/eventschedule"
)

// maxSetScheduleAttempts bounds the read+compare-and-set loop for admin edits.
const maxSetScheduleAttempts = 3

// SetScheduleInput carries the admin-entered dates (YYYY-MM-DD).
type SetScheduleInput struct {
	PreRegStartDate string
	EventDate       string
}

// SetScheduleDeps holds dependencies for SetSchedule.
type SetScheduleDeps struct {
	ScheduleStore ScheduleStore
}

// ExecuteSetSchedule replaces the schedule with admin-chosen dates.
// PRE: dates are YYYY-MM-DD strings
// POST: the stored schedule equals the requested one, or an error is returned
// INVARIANT: only PreRegStartDate < EventDate is enforced; no weekday or lead-time rules
func ExecuteSetSchedule(ctx context.Context, input SetScheduleInput, deps SetScheduleDeps) (eventschedule.Schedule, error) {
	next, err := eventschedule.Parse(input.PreRegStartDate, input.EventDate)
	if err != nil {
		return eventschedule.Schedule{}, err
	}

	for attempt := 1; attempt <= maxSetScheduleAttempts; attempt++ {
		current, err := deps.ScheduleStore.Get(ctx)
		if err != nil {
			return eventschedule.Schedule{}, storageErr("read schedule", err)
		}
		if current.Equal(next) {
			return next, nil
		}

		ok, err := deps.ScheduleStore.CompareAndSet(ctx, current, next)
		if err != nil {
			return eventschedule.Schedule{}, storageErr("write schedule", err)
		}
		if ok {
			slog.Info("schedule_event", "event", "schedule_set", "from", current.String(), "to", next.String(), "attempt", attempt)
			return next, nil
		}
	}

	slog.Warn("schedule_event", "event", "schedule_set_contended", "requested", next.String())
	return eventschedule.Schedule{}, ErrScheduleContention
}
