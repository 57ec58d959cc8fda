package attendance

import (
	"context"
	"time"

	domain "gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
)

// Store persists attendance records. Records are append-only.
type Store interface {
	Append(ctx context.Context, value domain.Record) error
	GetByID(ctx context.Context, id string) (domain.Record, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Record, error)
	ListByPersonID(ctx context.Context, personID string) ([]domain.Record, error)
	ListByKindAndType(ctx context.Context, kind string, typ eventschedule.RegistrationType) ([]domain.Record, error)
	ListBetween(ctx context.Context, start, end time.Time) ([]domain.Record, error)
}

// ListFilter carries filtering parameters for List operations.
// A zero Limit returns every record.
type ListFilter struct {
	Limit  int
	Offset int
}
