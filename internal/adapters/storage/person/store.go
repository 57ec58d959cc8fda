package person

import (
	"context"

	domain "gather/internal/domain/person"
)

// Store persists Person state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Person, error)
	GetByEmail(ctx context.Context, email string) (domain.Person, error)
	Save(ctx context.Context, value domain.Person) error
	List(ctx context.Context, filter ListFilter) ([]domain.Person, error)
}

// ListFilter carries filtering parameters for List operations.
// Empty Kind or Status matches everything.
type ListFilter struct {
	Limit  int
	Offset int
	Kind   string
	Status string
}
