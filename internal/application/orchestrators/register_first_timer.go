package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"gather/internal/domain/person"
)

// PersonStore defines the person persistence used by registration and promotion.
type PersonStore interface {
	GetByID(ctx context.Context, id string) (person.Person, error)
	GetByEmail(ctx context.Context, email string) (person.Person, error)
	Save(ctx context.Context, p person.Person) error
}

// RegisterFirstTimerInput carries the kiosk "new comer" form.
type RegisterFirstTimerInput struct {
	Name  string
	Email string // optional
}

// RegisterFirstTimerDeps holds dependencies for RegisterFirstTimer.
type RegisterFirstTimerDeps struct {
	PersonStore PersonStore
	GenerateID  func() string
}

// ExecuteRegisterFirstTimer creates a first-timer so the kiosk can issue their QR code.
// PRE: Name is non-empty; Email, if present, is not already registered
// POST: a new active first-timer person is persisted and returned
func ExecuteRegisterFirstTimer(ctx context.Context, input RegisterFirstTimerInput, deps RegisterFirstTimerDeps) (person.Person, error) {
	generateID := deps.GenerateID
	if generateID == nil {
		generateID = uuid.NewString
	}

	p := person.Person{
		ID:     generateID(),
		Name:   strings.TrimSpace(input.Name),
		Email:  strings.ToLower(strings.TrimSpace(input.Email)),
		Kind:   person.KindFirstTimer,
		Status: person.StatusActive,
	}
	if err := p.Validate(); err != nil {
		return person.Person{}, err
	}

	if p.Email != "" {
		_, err := deps.PersonStore.GetByEmail(ctx, p.Email)
		switch {
		case err == nil:
			return person.Person{}, ErrEmailTaken
		case !errors.Is(err, sql.ErrNoRows):
			return person.Person{}, storageErr("look up email", err)
		}
	}

	if err := deps.PersonStore.Save(ctx, p); err != nil {
		return person.Person{}, storageErr("save person", err)
	}

	slog.Info("person_event", "event", "first_timer_registered", "person_id", p.ID)
	return p, nil
}
