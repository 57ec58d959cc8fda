package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	emailAdapter "gather/internal/adapters/email"
	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

var errDiskFull = errors.New("disk full")

// mockScheduleStore implements ScheduleStore with compare-and-set semantics.
type mockScheduleStore struct {
	mu        sync.Mutex
	current   eventschedule.Schedule
	getErr    error
	casErr    error
	gets      int
	writes    int
	beforeCAS func(m *mockScheduleStore) // runs inside CompareAndSet to simulate a racing writer
}

// Get implements ScheduleStore.
// POST: returns the current schedule or getErr
func (m *mockScheduleStore) Get(_ context.Context) (eventschedule.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.current, m.getErr
}

// CompareAndSet implements ScheduleStore.
// PRE: next is valid
// POST: current replaced only if it equals expected
func (m *mockScheduleStore) CompareAndSet(_ context.Context, expected, next eventschedule.Schedule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeCAS != nil {
		hook := m.beforeCAS
		m.beforeCAS = nil
		hook(m)
	}
	if m.casErr != nil {
		return false, m.casErr
	}
	if !m.current.Equal(expected) {
		return false, nil
	}
	m.current = next
	m.writes++
	return true, nil
}

// mockAttendanceStore implements AttendanceAppender and PersonAttendanceReader.
type mockAttendanceStore struct {
	records   []attendance.Record
	appendErr error
	listErr   error
}

// Append implements AttendanceAppender.
// POST: record appended unless appendErr is set
func (m *mockAttendanceStore) Append(_ context.Context, r attendance.Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, r)
	return nil
}

// ListByPersonID implements PersonAttendanceReader.
func (m *mockAttendanceStore) ListByPersonID(_ context.Context, personID string) ([]attendance.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []attendance.Record
	for _, r := range m.records {
		if r.PersonID == personID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockPersonStore implements PersonStore.
type mockPersonStore struct {
	people  map[string]person.Person
	saveErr error
	saved   []person.Person
}

func newMockPersonStore(people ...person.Person) *mockPersonStore {
	m := &mockPersonStore{people: make(map[string]person.Person)}
	for _, p := range people {
		m.people[p.ID] = p
	}
	return m
}

// GetByID implements PersonStore.
// POST: returns an error wrapping sql.ErrNoRows when absent
func (m *mockPersonStore) GetByID(_ context.Context, id string) (person.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return person.Person{}, fmt.Errorf("person not found: %w", sql.ErrNoRows)
	}
	return p, nil
}

// GetByEmail implements PersonStore.
func (m *mockPersonStore) GetByEmail(_ context.Context, email string) (person.Person, error) {
	for _, p := range m.people {
		if p.Email == email {
			return p, nil
		}
	}
	return person.Person{}, fmt.Errorf("person not found: %w", sql.ErrNoRows)
}

// Save implements PersonStore.
func (m *mockPersonStore) Save(_ context.Context, p person.Person) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.people[p.ID] = p
	m.saved = append(m.saved, p)
	return nil
}

// mockSender implements email.Sender.
type mockSender struct {
	sent []emailAdapter.SendRequest
	err  error
}

// Send implements email.Sender.
func (m *mockSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	if m.err != nil {
		return emailAdapter.SendResult{}, m.err
	}
	m.sent = append(m.sent, req)
	return emailAdapter.SendResult{MessageID: "m-1", SentAt: time.Now()}, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustSchedule(preReg, event string) eventschedule.Schedule {
	s, err := eventschedule.Parse(preReg, event)
	if err != nil {
		panic(err)
	}
	return s
}
