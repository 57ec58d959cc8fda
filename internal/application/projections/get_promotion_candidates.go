package projections

import (
	"context"
	"database/sql"
	"errors"

	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
	"gather/internal/domain/promotion"
)

// PromotionRecordReader reads the raw records the aggregator consumes.
type PromotionRecordReader interface {
	ListByKindAndType(ctx context.Context, kind string, typ eventschedule.RegistrationType) ([]attendance.Record, error)
}

// PersonLookup resolves a person by ID.
type PersonLookup interface {
	GetByID(ctx context.Context, id string) (person.Person, error)
}

// GetPromotionCandidatesQuery carries input for the promotion view.
type GetPromotionCandidatesQuery struct {
	Threshold    int  // <= 0 uses promotion.DefaultThreshold
	EligibleOnly bool // drop candidates below threshold
}

// GetPromotionCandidatesDeps holds dependencies for the promotion view.
type GetPromotionCandidatesDeps struct {
	AttendanceStore PromotionRecordReader
	PersonStore     PersonLookup // optional: fills names and hides promoted or archived people
}

// PromotionCandidateResult is a candidate plus display details when known.
type PromotionCandidateResult struct {
	promotion.Candidate
	Name  string
	Email string
}

// QueryGetPromotionCandidates recomputes first-timer promotion eligibility from the full record set.
// PRE: none
// POST: Returns candidates ordered by unique actual days descending; read failures wrap ErrStorage
// INVARIANT: nothing is cached between calls
func QueryGetPromotionCandidates(ctx context.Context, query GetPromotionCandidatesQuery, deps GetPromotionCandidatesDeps) ([]PromotionCandidateResult, error) {
	records, err := deps.AttendanceStore.ListByKindAndType(ctx, person.KindFirstTimer, eventschedule.Actual)
	if err != nil {
		return nil, storageErr("load first-timer records", err)
	}

	candidates := promotion.ComputeCandidates(records, query.Threshold)
	results := make([]PromotionCandidateResult, 0, len(candidates))
	for _, c := range candidates {
		if query.EligibleOnly && !c.Eligible {
			continue
		}
		res := PromotionCandidateResult{Candidate: c}
		if deps.PersonStore != nil {
			p, err := deps.PersonStore.GetByID(ctx, c.PersonID)
			switch {
			case err == nil:
				if !p.IsFirstTimer() || p.IsArchived() {
					continue
				}
				res.Name, res.Email = p.Name, p.Email
			case !errors.Is(err, sql.ErrNoRows):
				return nil, storageErr("load person", err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}
