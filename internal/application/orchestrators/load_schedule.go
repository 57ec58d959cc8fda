package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"gather/internal/domain/eventschedule"
)

// ScheduleStore defines the conditional-write schedule persistence used by orchestrators.
type ScheduleStore interface {
	Get(ctx context.Context) (eventschedule.Schedule, error)
	CompareAndSet(ctx context.Context, expected, next eventschedule.Schedule) (bool, error)
}

// LoadScheduleDeps holds dependencies for LoadSchedule.
type LoadScheduleDeps struct {
	ScheduleStore ScheduleStore
	Now           func() time.Time
}

// LoadScheduleResult is the schedule callers should use for this page or session.
type LoadScheduleResult struct {
	Schedule eventschedule.Schedule
	Rolled   bool // true only for the caller whose write advanced the schedule
}

// ExecuteLoadSchedule reads the schedule and rolls it forward if the event date has passed.
// PRE: the schedule row has been initialized
// POST: Returns a schedule whose EventDate is on or after today (UTC)
// INVARIANT: at most one concurrent caller observes Rolled=true for a given expired schedule
func ExecuteLoadSchedule(ctx context.Context, deps LoadScheduleDeps) (LoadScheduleResult, error) {
	current, err := deps.ScheduleStore.Get(ctx)
	if err != nil {
		return LoadScheduleResult{}, storageErr("read schedule", err)
	}

	now := nowOr(deps.Now)
	next, rolled := eventschedule.Rollover(current, now)
	if !rolled {
		return LoadScheduleResult{Schedule: current}, nil
	}

	ok, err := deps.ScheduleStore.CompareAndSet(ctx, current, next)
	if err != nil {
		return LoadScheduleResult{}, storageErr("roll over schedule", err)
	}
	if !ok {
		// Another caller rolled first; adopt whatever they wrote.
		winner, err := deps.ScheduleStore.Get(ctx)
		if err != nil {
			return LoadScheduleResult{}, storageErr("re-read schedule", err)
		}
		slog.Info("schedule_event", "event", "rollover_lost", "expected", current.String(), "current", winner.String())
		return LoadScheduleResult{Schedule: winner}, nil
	}

	slog.Info("schedule_event", "event", "schedule_rolled_over", "from", current.String(), "to", next.String(), "today", eventschedule.FormatDate(now))
	return LoadScheduleResult{Schedule: next, Rolled: true}, nil
}
