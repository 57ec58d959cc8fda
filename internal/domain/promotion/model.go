package promotion

import (
	"sort"

	"gather/internal/domain/attendance"
	"gather/internal/domain/person"
)

// DefaultThreshold is the number of distinct event days a first-timer must
// attend before becoming eligible for membership.
const DefaultThreshold = 4

// Candidate is a derived, never-persisted view of one first-timer's progress.
type Candidate struct {
	PersonID         string
	UniqueActualDays int
	Eligible         bool
}

// EffectiveThreshold maps a non-positive threshold to DefaultThreshold.
func EffectiveThreshold(threshold int) int {
	if threshold <= 0 {
		return DefaultThreshold
	}
	return threshold
}

// ComputeCandidates aggregates raw check-in records into promotion candidates.
// PRE: records may be in any order and may contain same-day duplicates
// POST: one Candidate per first-timer with at least one actual record,
// sorted by UniqueActualDays descending, ties in first-appearance order
// INVARIANT: records is not mutated
func ComputeCandidates(records []attendance.Record, threshold int) []Candidate {
	threshold = EffectiveThreshold(threshold)

	index := make(map[string]int)
	seen := make(map[dayKey]struct{})
	var out []Candidate

	for _, r := range records {
		if r.PersonKind != person.KindFirstTimer || !r.IsActual() {
			continue
		}
		i, ok := index[r.PersonID]
		if !ok {
			i = len(out)
			index[r.PersonID] = i
			out = append(out, Candidate{PersonID: r.PersonID})
		}
		k := dayKey{personID: r.PersonID, day: r.Day()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out[i].UniqueActualDays++
	}

	for i := range out {
		out[i].Eligible = out[i].UniqueActualDays >= threshold
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].UniqueActualDays > out[b].UniqueActualDays
	})
	return out
}

// UniqueActualDays counts the distinct UTC days on which personID has an
// actual check-in, regardless of person kind.
func UniqueActualDays(records []attendance.Record, personID string) int {
	days := make(map[string]struct{})
	for _, r := range records {
		if r.PersonID == personID && r.IsActual() {
			days[r.Day()] = struct{}{}
		}
	}
	return len(days)
}

// Find returns the candidate for personID, if present.
func Find(candidates []Candidate, personID string) (Candidate, bool) {
	for _, c := range candidates {
		if c.PersonID == personID {
			return c, true
		}
	}
	return Candidate{}, false
}

type dayKey struct {
	personID string
	day      string
}
