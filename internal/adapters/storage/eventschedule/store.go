package eventschedule

import (
	"context"

	domain "gather/internal/domain/eventschedule"
)

// Store persists the single current event schedule.
// All writes go through CompareAndSet so concurrent rollovers cannot clobber each other.
type Store interface {
	Get(ctx context.Context) (domain.Schedule, error)
	CompareAndSet(ctx context.Context, expected, next domain.Schedule) (bool, error)
}
