package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"gather/internal/domain/person"
)

// PersonStoreForArchive defines the store interface needed by Archive/Restore.
type PersonStoreForArchive interface {
	GetByID(ctx context.Context, id string) (person.Person, error)
	Save(ctx context.Context, p person.Person) error
}

// ArchivePersonInput carries input for the archive orchestrator.
type ArchivePersonInput struct {
	PersonID string
}

// ArchivePersonDeps holds dependencies for ArchivePerson and RestorePerson.
type ArchivePersonDeps struct {
	PersonStore PersonStoreForArchive
}

// ExecuteArchivePerson archives a person so they drop out of promotion.
// PRE: PersonID names an existing, active person
// POST: status is archived; attendance history is untouched
func ExecuteArchivePerson(ctx context.Context, input ArchivePersonInput, deps ArchivePersonDeps) (person.Person, error) {
	return changeStatus(ctx, input.PersonID, deps, (*person.Person).Archive, "person_archived")
}

// ExecuteRestorePerson restores an archived person to active status.
// PRE: PersonID names an existing, archived person
// POST: status is active
func ExecuteRestorePerson(ctx context.Context, input ArchivePersonInput, deps ArchivePersonDeps) (person.Person, error) {
	return changeStatus(ctx, input.PersonID, deps, (*person.Person).Restore, "person_restored")
}

func changeStatus(ctx context.Context, id string, deps ArchivePersonDeps, apply func(*person.Person) error, event string) (person.Person, error) {
	p, err := deps.PersonStore.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return person.Person{}, ErrPersonNotFound
	}
	if err != nil {
		return person.Person{}, storageErr("load person", err)
	}

	if err := apply(&p); err != nil {
		return person.Person{}, err
	}
	if err := deps.PersonStore.Save(ctx, p); err != nil {
		return person.Person{}, storageErr("save person", err)
	}

	slog.Info("person_event", "event", event, "person_id", p.ID)
	return p, nil
}
