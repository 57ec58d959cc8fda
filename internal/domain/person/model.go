package person

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
)

// Business rule constants
const (
	KindMember     = "member"
	KindFirstTimer = "first_timer"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Domain errors
var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrNameTooLong     = errors.New("name cannot exceed 100 characters")
	ErrInvalidEmail    = errors.New("email must be valid")
	ErrInvalidKind     = errors.New("kind must be 'member' or 'first_timer'")
	ErrInvalidStatus   = errors.New("status must be 'active' or 'archived'")
	ErrAlreadyMember   = errors.New("person is already a member")
	ErrAlreadyArchived = errors.New("person is already archived")
	ErrNotArchived     = errors.New("person is not archived")
)

// Person is anyone who can check in: a member or a first-timer ("new comer").
type Person struct {
	ID         string
	Name       string
	Email      string // optional for first-timers
	Kind       string
	Status     string
	PromotedAt time.Time // zero unless promoted from first-timer
}

// Validate checks if the Person has valid data.
// PRE: Person struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Name must not be empty; Email, when present, must contain '@'
func (p *Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}
	if !ValidKind(p.Kind) {
		return ErrInvalidKind
	}
	if p.Status != StatusActive && p.Status != StatusArchived {
		return ErrInvalidStatus
	}
	return nil
}

// ValidKind reports whether kind is a known person kind.
func ValidKind(kind string) bool {
	return kind == KindMember || kind == KindFirstTimer
}

// IsFirstTimer returns true if the person has not yet been promoted.
// INVARIANT: Kind field is not mutated
func (p *Person) IsFirstTimer() bool {
	return p.Kind == KindFirstTimer
}

// IsArchived returns true if the person is archived.
// INVARIANT: Status field is not mutated
func (p *Person) IsArchived() bool {
	return p.Status == StatusArchived
}

// Promote turns a first-timer into a member.
// PRE: Person is a first-timer
// POST: Kind is member and PromotedAt is set to now (UTC)
func (p *Person) Promote(now time.Time) error {
	if p.Kind == KindMember {
		return ErrAlreadyMember
	}
	p.Kind = KindMember
	p.PromotedAt = now.UTC()
	return nil
}

// Archive sets the person status to archived.
// PRE: Person is not already archived
// POST: Status is set to archived
func (p *Person) Archive() error {
	if p.Status == StatusArchived {
		return ErrAlreadyArchived
	}
	p.Status = StatusArchived
	return nil
}

// Restore sets the person status back to active.
// PRE: Person is currently archived
// POST: Status is set to active
func (p *Person) Restore() error {
	if p.Status != StatusArchived {
		return ErrNotArchived
	}
	p.Status = StatusActive
	return nil
}
