package person

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gather/internal/adapters/storage"
	domain "gather/internal/domain/person"
)

const selectColumns = "SELECT id, name, email, kind, status, promoted_at FROM person"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     storage.SQLDB
	tracer trace.Tracer
}

// NewSQLiteStore creates a new PersonStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, tracer: otel.Tracer("gather/storage/person")}
}

// GetByID retrieves a Person by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Person{}, fmt.Errorf("person not found: %w", err)
	}
	return p, err
}

// GetByEmail retrieves a Person by email, case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, selectColumns+" WHERE email = ?", normalizeEmail(email)))
	if err == sql.ErrNoRows {
		return domain.Person{}, fmt.Errorf("person not found: %w", err)
	}
	return p, err
}

// Save persists a Person to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Person) error {
	ctx, span := s.tracer.Start(ctx, "person.save",
		trace.WithAttributes(attribute.String("person.kind", entity.Kind)),
	)
	defer span.End()

	var email, promotedAt sql.NullString
	if entity.Email != "" {
		email = sql.NullString{String: normalizeEmail(entity.Email), Valid: true}
	}
	if !entity.PromotedAt.IsZero() {
		promotedAt = sql.NullString{String: entity.PromotedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO person (id, name, email, kind, status, promoted_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email, kind=excluded.kind,
		status=excluded.status, promoted_at=excluded.promoted_at`,
		entity.ID, entity.Name, email, entity.Kind, entity.Status, promotedAt,
	)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// List retrieves people ordered by name.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Person, error) {
	var where []string
	var args []any
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY name, id LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (domain.Person, error) {
	var p domain.Person
	var email, promotedAt sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &email, &p.Kind, &p.Status, &promotedAt); err != nil {
		return domain.Person{}, err
	}
	p.Email = email.String
	if promotedAt.Valid {
		t, err := time.Parse(time.RFC3339, promotedAt.String)
		if err != nil {
			return domain.Person{}, fmt.Errorf("failed to parse promoted_at: %w", err)
		}
		p.PromotedAt = t
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
