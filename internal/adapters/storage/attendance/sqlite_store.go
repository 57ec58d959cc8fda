package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gather/internal/adapters/storage"
	domain "gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
)

// TimestampLayout is fixed-width so stored timestamps sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = "SELECT id, person_id, person_kind, timestamp, type, method FROM attendance_record"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     storage.SQLDB
	tracer trace.Tracer
}

// NewSQLiteStore creates a new attendance store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, tracer: otel.Tracer("gather/storage/attendance")}
}

// Append inserts one attendance record.
// PRE: value has been validated
// POST: record is persisted; existing records are never touched
func (s *SQLiteStore) Append(ctx context.Context, value domain.Record) error {
	ctx, span := s.tracer.Start(ctx, "attendance.append",
		trace.WithAttributes(
			attribute.String("person.kind", value.PersonKind),
			attribute.String("attendance.type", string(value.Type)),
			attribute.String("attendance.method", value.Method),
		),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO attendance_record (id, person_id, person_kind, timestamp, type, method) VALUES (?, ?, ?, ?, ?, ?)",
		value.ID, value.PersonID, value.PersonKind, formatTimestamp(value.Timestamp), string(value.Type), value.Method,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID retrieves a record by its ID.
// PRE: id is non-empty
// POST: Returns the record or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return domain.Record{}, fmt.Errorf("attendance record not found: %w", err)
	}
	return r, err
}

// List retrieves records oldest first.
// PRE: filter has valid parameters
// POST: Returns at most filter.Limit records when Limit > 0
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, "attendance.list",
		selectColumns+" ORDER BY timestamp, rowid LIMIT ? OFFSET ?", limit, filter.Offset)
}

// ListByPersonID retrieves one person's records, newest first.
func (s *SQLiteStore) ListByPersonID(ctx context.Context, personID string) ([]domain.Record, error) {
	return s.query(ctx, "attendance.list_by_person",
		selectColumns+" WHERE person_id = ? ORDER BY timestamp DESC, rowid DESC", personID)
}

// ListByKindAndType retrieves every record of one person kind and registration type, oldest first.
func (s *SQLiteStore) ListByKindAndType(ctx context.Context, kind string, typ eventschedule.RegistrationType) ([]domain.Record, error) {
	return s.query(ctx, "attendance.list_by_kind_and_type",
		selectColumns+" WHERE person_kind = ? AND type = ? ORDER BY timestamp, rowid", kind, string(typ))
}

// ListBetween retrieves records with start <= timestamp < end, oldest first.
func (s *SQLiteStore) ListBetween(ctx context.Context, start, end time.Time) ([]domain.Record, error) {
	return s.query(ctx, "attendance.list_between",
		selectColumns+" WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp, rowid",
		formatTimestamp(start), formatTimestamp(end))
}

func (s *SQLiteStore) query(ctx context.Context, spanName, query string, args ...any) ([]domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}
	defer rows.Close()

	var results []domain.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("records.loaded", len(results)))
	return results, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.Record, error) {
	var r domain.Record
	var ts, typ string
	if err := row.Scan(&r.ID, &r.PersonID, &r.PersonKind, &ts, &typ, &r.Method); err != nil {
		return domain.Record{}, err
	}
	parsed, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to parse timestamp %q: %w", ts, err)
	}
	r.Timestamp = parsed.UTC()
	r.Type = eventschedule.RegistrationType(typ)
	return r, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
