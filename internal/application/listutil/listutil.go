// Package listutil parses pagination and filter query parameters for list endpoints.
package listutil

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// DefaultPerPage is the default number of rows per page.
const DefaultPerPage = 50

// PerPageOptions are the allowed rows-per-page values.
var PerPageOptions = []int{10, 20, 50, 100, 200}

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// Offset returns the SQL OFFSET for the page.
// POST: Returns (Page-1) * PerPage
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FetchLimit is one row more than a page, so a single query can tell whether
// another page exists without a COUNT.
func (p PageParams) FetchLimit() int {
	return p.PerPage + 1
}

// ParsePageParams extracts page and per_page from URL query values.
// POST: returns valid PageParams with defaults applied
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: perPage}
}

// PageInfo describes the page that was returned.
type PageInfo struct {
	Page     int  `json:"page"`
	PerPage  int  `json:"per_page"`
	HasMore  bool `json:"has_more"`
	NextPage int  `json:"next_page,omitempty"`
}

// Trim cuts a look-ahead sized result down to one page.
// PRE: rows came from a query limited to p.FetchLimit()
// POST: len(result) <= p.PerPage; info.HasMore reports whether a row was cut
func Trim[T any](rows []T, p PageParams) ([]T, PageInfo) {
	info := PageInfo{Page: p.Page, PerPage: p.PerPage}
	if len(rows) > p.PerPage {
		rows = rows[:p.PerPage]
		info.HasMore = true
		info.NextPage = p.Page + 1
	}
	return rows, info
}

// ParseFilterParams extracts exact-match filters, rejecting values outside allowed.
// PRE: allowed maps each filter key to its permitted values
// POST: returns only recognised keys; an unknown value is an error naming the key
func ParseFilterParams(q url.Values, allowed map[string][]string) (map[string]string, error) {
	filters := make(map[string]string)
	for key, values := range allowed {
		v := q.Get(key)
		if v == "" {
			continue
		}
		if !slices.Contains(values, v) {
			return nil, fmt.Errorf("%s must be one of %v", key, values)
		}
		filters[key] = v
	}
	return filters, nil
}
