package eventschedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gather/internal/adapters/storage"
	domain "gather/internal/domain/eventschedule"
)

// ErrNotInitialized is returned by Get before Init has seeded the row.
var ErrNotInitialized = errors.New("event schedule not initialized")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     storage.SQLDB
	tracer trace.Tracer
}

// NewSQLiteStore creates a new event schedule store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, tracer: otel.Tracer("gather/storage/eventschedule")}
}

// Init seeds the schedule row if none exists yet.
// PRE: seed has been validated
// POST: exactly one schedule row exists; an existing row is left untouched
func (s *SQLiteStore) Init(ctx context.Context, seed domain.Schedule) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_schedule (id, pre_reg_start_date, event_date, updated_at)
		VALUES (1, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO NOTHING`,
		domain.FormatDate(seed.PreRegStartDate), domain.FormatDate(seed.EventDate),
	)
	return err
}

// Get returns the current schedule.
// PRE: Init has been called
// POST: Returns the stored schedule or ErrNotInitialized
func (s *SQLiteStore) Get(ctx context.Context) (domain.Schedule, error) {
	ctx, span := s.tracer.Start(ctx, "eventschedule.get")
	defer span.End()

	var preReg, event string
	err := s.db.QueryRowContext(ctx,
		"SELECT pre_reg_start_date, event_date FROM event_schedule WHERE id = 1",
	).Scan(&preReg, &event)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, ErrNotInitialized
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return domain.Schedule{}, err
	}

	sched, err := domain.Parse(preReg, event)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("stored schedule %s..%s: %w", preReg, event, err)
	}
	span.SetAttributes(
		attribute.String("schedule.pre_reg_start_date", preReg),
		attribute.String("schedule.event_date", event),
	)
	return sched, nil
}

// CompareAndSet replaces the schedule only if it still equals expected.
// PRE: next has been validated
// POST: Returns true if this call wrote next, false if another writer got there first
// INVARIANT: a single conditional UPDATE; never a read-modify-write
func (s *SQLiteStore) CompareAndSet(ctx context.Context, expected, next domain.Schedule) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "eventschedule.compare_and_set",
		trace.WithAttributes(
			attribute.String("schedule.expected", expected.String()),
			attribute.String("schedule.next", next.String()),
		),
	)
	defer span.End()

	if err := next.Validate(); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE event_schedule
		SET pre_reg_start_date = ?, event_date = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = 1 AND pre_reg_start_date = ? AND event_date = ?`,
		domain.FormatDate(next.PreRegStartDate), domain.FormatDate(next.EventDate),
		domain.FormatDate(expected.PreRegStartDate), domain.FormatDate(expected.EventDate),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("cas.applied", n == 1))
	return n == 1, nil
}
