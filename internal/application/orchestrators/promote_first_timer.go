package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "gather/internal/adapters/email"
	"gather/internal/domain/attendance"
	"gather/internal/domain/person"
	"gather/internal/domain/promotion"
)

// ErrPersonNotFound is returned when the person to promote does not exist.
var ErrPersonNotFound = errors.New("person not found")

// PersonAttendanceReader reads one person's attendance history.
type PersonAttendanceReader interface {
	ListByPersonID(ctx context.Context, personID string) ([]attendance.Record, error)
}

// PromoteFirstTimerInput carries input for promoting a first-timer.
type PromoteFirstTimerInput struct {
	PersonID  string
	Threshold int // <= 0 uses promotion.DefaultThreshold
}

// PromoteFirstTimerDeps holds dependencies for PromoteFirstTimer.
type PromoteFirstTimerDeps struct {
	PersonStore     PersonStore
	AttendanceStore PersonAttendanceReader
	Sender          emailAdapter.Sender // optional: nil skips the welcome email
	Now             func() time.Time
}

// PromoteFirstTimerResult reports the promotion outcome.
type PromoteFirstTimerResult struct {
	Person           person.Person
	UniqueActualDays int
	WelcomeSent      bool
}

// ExecutePromoteFirstTimer turns an eligible first-timer into a member.
// PRE: PersonID names an active first-timer
// POST: person is saved as a member; a welcome email is attempted if they have an address
// INVARIANT: eligibility is recomputed from raw records on every call
func ExecutePromoteFirstTimer(ctx context.Context, input PromoteFirstTimerInput, deps PromoteFirstTimerDeps) (PromoteFirstTimerResult, error) {
	p, err := deps.PersonStore.GetByID(ctx, input.PersonID)
	if errors.Is(err, sql.ErrNoRows) {
		return PromoteFirstTimerResult{}, ErrPersonNotFound
	}
	if err != nil {
		return PromoteFirstTimerResult{}, storageErr("load person", err)
	}
	if !p.IsFirstTimer() {
		return PromoteFirstTimerResult{}, person.ErrAlreadyMember
	}
	if p.IsArchived() {
		return PromoteFirstTimerResult{}, ErrPersonArchived
	}

	records, err := deps.AttendanceStore.ListByPersonID(ctx, p.ID)
	if err != nil {
		return PromoteFirstTimerResult{}, storageErr("load attendance", err)
	}
	threshold := promotion.EffectiveThreshold(input.Threshold)
	candidate, _ := promotion.Find(promotion.ComputeCandidates(records, threshold), p.ID)
	if !candidate.Eligible {
		return PromoteFirstTimerResult{}, fmt.Errorf("%w: %d of %d days", ErrNotEligible, candidate.UniqueActualDays, threshold)
	}

	if err := p.Promote(nowOr(deps.Now)); err != nil {
		return PromoteFirstTimerResult{}, err
	}
	if err := deps.PersonStore.Save(ctx, p); err != nil {
		return PromoteFirstTimerResult{}, storageErr("save person", err)
	}
	slog.Info("person_event", "event", "first_timer_promoted", "person_id", p.ID, "unique_actual_days", candidate.UniqueActualDays)

	result := PromoteFirstTimerResult{Person: p, UniqueActualDays: candidate.UniqueActualDays}
	if deps.Sender != nil && p.Email != "" {
		result.WelcomeSent = sendWelcome(ctx, deps.Sender, p, candidate.UniqueActualDays)
	}
	return result, nil
}

// sendWelcome is best-effort: failures are logged, never returned.
func sendWelcome(ctx context.Context, sender emailAdapter.Sender, p person.Person, days int) bool {
	html, err := emailAdapter.RenderWelcome(emailAdapter.WelcomeData{Name: p.Name, Days: days})
	if err != nil {
		slog.Error("person_event", "event", "welcome_render_failed", "person_id", p.ID, "error", err)
		return false
	}
	if _, err := sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{p.Email},
		Subject: emailAdapter.WelcomeSubject,
		HTML:    html,
	}); err != nil {
		slog.Warn("person_event", "event", "welcome_send_failed", "person_id", p.ID, "error", err)
		return false
	}
	return true
}
