package projections

import (
	"context"

	"gather/internal/adapters/storage/person"
	"gather/internal/application/listutil"
	domain "gather/internal/domain/person"
)

// PeopleLister pages through people.
type PeopleLister interface {
	List(ctx context.Context, filter person.ListFilter) ([]domain.Person, error)
}

// GetPeopleQuery carries the filters and page to list.
type GetPeopleQuery struct {
	Kind   string // empty matches both kinds
	Status string // empty matches both statuses
	Page   listutil.PageParams
}

// GetPeopleDeps holds dependencies for GetPeople.
type GetPeopleDeps struct {
	PersonStore PeopleLister
}

// GetPeopleResult is one page of people.
type GetPeopleResult struct {
	People []domain.Person
	Page   listutil.PageInfo
}

// QueryGetPeople lists people ordered by name, one page at a time.
// PRE: query.Page has Page >= 1 and PerPage > 0
// POST: len(People) <= PerPage; Page.HasMore is true only if a later page has rows
func QueryGetPeople(ctx context.Context, query GetPeopleQuery, deps GetPeopleDeps) (GetPeopleResult, error) {
	rows, err := deps.PersonStore.List(ctx, person.ListFilter{
		Limit:  query.Page.FetchLimit(),
		Offset: query.Page.Offset(),
		Kind:   query.Kind,
		Status: query.Status,
	})
	if err != nil {
		return GetPeopleResult{}, storageErr("list people", err)
	}
	if rows == nil {
		rows = []domain.Person{}
	}
	people, info := listutil.Trim(rows, query.Page)
	return GetPeopleResult{People: people, Page: info}, nil
}
