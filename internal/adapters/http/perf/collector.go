// Package perf keeps a bounded in-memory history of request and query timings
// for the admin /debug/perf snapshot.
package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// DefaultTopN bounds the slowest-path lists in a Snapshot.
const DefaultTopN = 10

// EntryKind distinguishes request vs query entries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// String returns the JSON-facing name of the kind.
func (k EntryKind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "request"
}

// MarshalText implements encoding.TextMarshaler.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Entry is a single timing record.
type Entry struct {
	Kind       EntryKind `json:"kind"`
	Path       string    `json:"path"`                  // route pattern or "sql.Op"
	StatusCode int       `json:"status_code,omitempty"` // 0 for queries; 500 marks a failed query
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Failed reports whether the entry represents a server-side failure.
func (e Entry) Failed() bool {
	return e.StatusCode >= 500
}

// Collector is a fixed-size ring buffer of timing entries.
// When full, the oldest entries are overwritten. Aggregation happens on read.
type Collector struct {
	mu       sync.Mutex
	entries  []Entry
	pos      int
	requests atomic.Int64
	queries  atomic.Int64
}

// NewCollector creates a collector with the given ring capacity.
// PRE: size > 0, otherwise DefaultRingSize is used
// POST: Returns a ready-to-use collector with pre-allocated storage
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores e. A nil collector ignores the call.
// POST: Entry stored; if buffer full, oldest entry overwritten
func (c *Collector) Record(e Entry) {
	if c == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()

	if e.Kind == KindQuery {
		c.queries.Add(1)
	} else {
		c.requests.Add(1)
	}
}

// Totals returns how many requests and queries were ever recorded.
func (c *Collector) Totals() (requests, queries int64) {
	if c == nil {
		return 0, 0
	}
	return c.requests.Load(), c.queries.Load()
}

// Snapshot is the aggregated view served at /debug/perf.
type Snapshot struct {
	Since          time.Time  `json:"since"`
	TotalRequests  int64      `json:"total_requests"`
	TotalQueries   int64      `json:"total_queries"`
	WindowRequests int        `json:"window_requests"`
	ServerErrors   int        `json:"server_errors"`
	RequestP50Ms   float64    `json:"request_p50_ms"`
	RequestP95Ms   float64    `json:"request_p95_ms"`
	RequestP99Ms   float64    `json:"request_p99_ms"`
	SlowestPaths   []PathStat `json:"slowest_paths"`
	SlowestQueries []PathStat `json:"slowest_queries"`
}

// PathStat aggregates timing for one route or query operation.
type PathStat struct {
	Path    string  `json:"path"`
	Count   int     `json:"count"`
	Errors  int     `json:"errors"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	TotalMs float64 `json:"total_ms"`
}

func (s *PathStat) add(e Entry) {
	s.Count++
	s.TotalMs += e.DurationMs
	if e.DurationMs > s.MaxMs {
		s.MaxMs = e.DurationMs
	}
	if e.Failed() {
		s.Errors++
	}
}

// Snapshot aggregates entries recorded at or after since.
// PRE: topN <= 0 uses DefaultTopN
// POST: Returns percentiles over requests and the slowest paths by average
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	if topN <= 0 {
		topN = DefaultTopN
	}
	snap := Snapshot{Since: since}
	if c == nil {
		return snap
	}

	c.mu.Lock()
	buf := make([]Entry, len(c.entries))
	copy(buf, c.entries)
	c.mu.Unlock()

	var durations []float64
	byPath := map[EntryKind]map[string]*PathStat{
		KindRequest: {},
		KindQuery:   {},
	}
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		if e.Kind == KindRequest {
			durations = append(durations, e.DurationMs)
			if e.Failed() {
				snap.ServerErrors++
			}
		}
		stats := byPath[e.Kind]
		s, ok := stats[e.Path]
		if !ok {
			s = &PathStat{Path: e.Path}
			stats[e.Path] = s
		}
		s.add(e)
	}

	snap.TotalRequests, snap.TotalQueries = c.Totals()
	snap.WindowRequests = len(durations)
	snap.SlowestPaths = topByAvg(byPath[KindRequest], topN)
	snap.SlowestQueries = topByAvg(byPath[KindQuery], topN)

	if len(durations) > 0 {
		sort.Float64s(durations)
		snap.RequestP50Ms = percentile(durations, 50)
		snap.RequestP95Ms = percentile(durations, 95)
		snap.RequestP99Ms = percentile(durations, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// topByAvg returns the n slowest paths by average duration, ties broken by path.
func topByAvg(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.TotalMs / float64(s.Count)
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs != list[j].AvgMs {
			return list[i].AvgMs > list[j].AvgMs
		}
		return list[i].Path < list[j].Path
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
