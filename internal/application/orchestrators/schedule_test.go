package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"gather/internal/domain/eventschedule"
)

// TestExecuteLoadSchedule_NotExpired verifies no write happens on or before the event day.
func TestExecuteLoadSchedule_NotExpired(t *testing.T) {
	store := &mockScheduleStore{current: mustSchedule("2024-05-28", "2024-06-02")}
	deps := LoadScheduleDeps{ScheduleStore: store, Now: fixedNow(time.Date(2024, 6, 2, 23, 0, 0, 0, time.UTC))}

	res, err := ExecuteLoadSchedule(context.Background(), deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rolled || store.writes != 0 {
		t.Errorf("rolled = %v, writes = %d, want no rollover", res.Rolled, store.writes)
	}
}

// TestExecuteLoadSchedule_ScenarioB verifies Monday 2024-06-10 rolls to 2024-06-11..2024-06-16.
func TestExecuteLoadSchedule_ScenarioB(t *testing.T) {
	store := &mockScheduleStore{current: mustSchedule("2024-05-28", "2024-06-02")}
	deps := LoadScheduleDeps{ScheduleStore: store, Now: fixedNow(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))}

	res, err := ExecuteLoadSchedule(context.Background(), deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Rolled {
		t.Fatal("expected rollover")
	}
	if got := res.Schedule.String(); got != "2024-06-11..2024-06-16" {
		t.Errorf("schedule = %s, want 2024-06-11..2024-06-16", got)
	}
	if got := store.current.String(); got != "2024-06-11..2024-06-16" {
		t.Errorf("stored = %s, want 2024-06-11..2024-06-16", got)
	}

	// Same day again: idempotent.
	res, err = ExecuteLoadSchedule(context.Background(), deps)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if res.Rolled || store.writes != 1 {
		t.Errorf("second call rolled = %v, writes = %d", res.Rolled, store.writes)
	}
}

// TestExecuteLoadSchedule_LostRace verifies the loser adopts the winner's schedule.
func TestExecuteLoadSchedule_LostRace(t *testing.T) {
	winner := mustSchedule("2024-06-11", "2024-06-16")
	store := &mockScheduleStore{
		current:   mustSchedule("2024-05-28", "2024-06-02"),
		beforeCAS: func(m *mockScheduleStore) { m.current = winner },
	}
	deps := LoadScheduleDeps{ScheduleStore: store, Now: fixedNow(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))}

	res, err := ExecuteLoadSchedule(context.Background(), deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Rolled {
		t.Error("loser reported rolled = true")
	}
	if !res.Schedule.Equal(winner) {
		t.Errorf("schedule = %s, want winner %s", res.Schedule, winner)
	}
	if store.gets != 2 {
		t.Errorf("gets = %d, want 2 (initial read + re-read)", store.gets)
	}
}

// TestExecuteLoadSchedule_StorageFailure verifies read and write failures map to ErrStorage.
func TestExecuteLoadSchedule_StorageFailure(t *testing.T) {
	now := fixedNow(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC))

	store := &mockScheduleStore{getErr: errDiskFull}
	_, err := ExecuteLoadSchedule(context.Background(), LoadScheduleDeps{ScheduleStore: store, Now: now})
	if !errors.Is(err, ErrStorage) || !errors.Is(err, errDiskFull) {
		t.Errorf("read failure err = %v, want ErrStorage wrapping cause", err)
	}

	store = &mockScheduleStore{current: mustSchedule("2024-05-28", "2024-06-02"), casErr: errDiskFull}
	_, err = ExecuteLoadSchedule(context.Background(), LoadScheduleDeps{ScheduleStore: store, Now: now})
	if !errors.Is(err, ErrStorage) {
		t.Errorf("write failure err = %v, want ErrStorage", err)
	}
}

// TestExecuteSetSchedule tests admin schedule edits.
func TestExecuteSetSchedule(t *testing.T) {
	tests := []struct {
		name    string
		preReg  string
		event   string
		wantErr error
	}{
		{name: "valid", preReg: "2024-06-04", event: "2024-06-09"},
		{name: "non-sunday allowed", preReg: "2024-06-04", event: "2024-06-06"},
		{name: "same day", preReg: "2024-06-09", event: "2024-06-09", wantErr: eventschedule.ErrInvalidSchedule},
		{name: "inverted", preReg: "2024-06-10", event: "2024-06-09", wantErr: eventschedule.ErrInvalidSchedule},
		{name: "malformed", preReg: "June 4", event: "2024-06-09", wantErr: eventschedule.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockScheduleStore{current: mustSchedule("2024-05-28", "2024-06-02")}
			got, err := ExecuteSetSchedule(context.Background(),
				SetScheduleInput{PreRegStartDate: tt.preReg, EventDate: tt.event},
				SetScheduleDeps{ScheduleStore: store})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if store.writes != 0 {
					t.Errorf("writes = %d on rejected edit", store.writes)
				}
				return
			}
			if !store.current.Equal(got) {
				t.Errorf("stored %s, returned %s", store.current, got)
			}
		})
	}
}

// TestExecuteSetSchedule_RetriesAfterConcurrentRollover verifies a lost CAS is retried.
func TestExecuteSetSchedule_RetriesAfterConcurrentRollover(t *testing.T) {
	store := &mockScheduleStore{
		current:   mustSchedule("2024-05-28", "2024-06-02"),
		beforeCAS: func(m *mockScheduleStore) { m.current = mustSchedule("2024-06-11", "2024-06-16") },
	}

	got, err := ExecuteSetSchedule(context.Background(),
		SetScheduleInput{PreRegStartDate: "2024-06-12", EventDate: "2024-06-16"},
		SetScheduleDeps{ScheduleStore: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "2024-06-12..2024-06-16" || !store.current.Equal(got) {
		t.Errorf("got %s, stored %s", got, store.current)
	}
	if store.gets != 2 {
		t.Errorf("gets = %d, want 2", store.gets)
	}
}

// TestExecuteSetSchedule_Contention verifies the loop gives up after bounded attempts.
func TestExecuteSetSchedule_Contention(t *testing.T) {
	store := &contendedScheduleStore{mockScheduleStore{current: mustSchedule("2024-05-28", "2024-06-02")}}

	_, err := ExecuteSetSchedule(context.Background(),
		SetScheduleInput{PreRegStartDate: "2024-06-12", EventDate: "2024-06-16"},
		SetScheduleDeps{ScheduleStore: store})
	if !errors.Is(err, ErrScheduleContention) {
		t.Errorf("err = %v, want ErrScheduleContention", err)
	}
	if store.gets != maxSetScheduleAttempts {
		t.Errorf("gets = %d, want %d", store.gets, maxSetScheduleAttempts)
	}
}

// contendedScheduleStore always loses the compare-and-set.
type contendedScheduleStore struct {
	mockScheduleStore
}

func (c *contendedScheduleStore) CompareAndSet(context.Context, eventschedule.Schedule, eventschedule.Schedule) (bool, error) {
	return false, nil
}
