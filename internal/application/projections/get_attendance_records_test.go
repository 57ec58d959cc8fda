package projections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	attendanceStore "gather/internal/adapters/storage/attendance"
	"gather/internal/application/listutil"
	"gather/internal/application/orchestrators"
	"gather/internal/domain/attendance"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

// mockRecordLog implements AttendanceRecordReader over an in-memory log.
type mockRecordLog struct {
	records []attendance.Record
	err     error
}

func (m *mockRecordLog) GetByID(_ context.Context, id string) (attendance.Record, error) {
	if m.err != nil {
		return attendance.Record{}, m.err
	}
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return attendance.Record{}, fmt.Errorf("attendance record not found: %w", sql.ErrNoRows)
}

func (m *mockRecordLog) List(_ context.Context, f attendanceStore.ListFilter) ([]attendance.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	if f.Offset >= len(m.records) {
		return nil, nil
	}
	out := m.records[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func TestQueryGetAttendanceRecords(t *testing.T) {
	var recLog mockRecordLog
	for i := 0; i < 3; i++ {
		recLog.records = append(recLog.records, record(fmt.Sprintf("P%d", i), person.KindMember, time.Date(2024, 6, 2, 10, i, 0, 0, time.UTC), eventschedule.Actual))
	}
	deps := GetAttendanceRecordsDeps{AttendanceStore: &recLog}

	got, err := QueryGetAttendanceRecords(context.Background(), GetAttendanceRecordsQuery{Page: listutil.PageParams{Page: 1, PerPage: 2}}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Records) != 2 || !got.Page.HasMore || got.Records[0].PersonID != "P0" {
		t.Errorf("page 1 = %+v", got)
	}

	got, err = QueryGetAttendanceRecords(context.Background(), GetAttendanceRecordsQuery{Page: listutil.PageParams{Page: 2, PerPage: 2}}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Records) != 1 || got.Page.HasMore {
		t.Errorf("page 2 = %+v", got)
	}

	r, err := QueryGetAttendanceRecord(context.Background(), recLog.records[1].ID, deps)
	if err != nil || r.PersonID != "P1" {
		t.Errorf("get = %+v, %v", r, err)
	}
	if _, err := QueryGetAttendanceRecord(context.Background(), "missing", deps); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing err = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryGetAttendanceRecords_StorageFailure(t *testing.T) {
	deps := GetAttendanceRecordsDeps{AttendanceStore: &mockRecordLog{err: errors.New("database is locked")}}
	if _, err := QueryGetAttendanceRecords(context.Background(), GetAttendanceRecordsQuery{Page: listutil.PageParams{Page: 1, PerPage: 10}}, deps); !errors.Is(err, orchestrators.ErrStorage) {
		t.Errorf("list err = %v, want ErrStorage", err)
	}
	if _, err := QueryGetAttendanceRecord(context.Background(), "a1", deps); !errors.Is(err, orchestrators.ErrStorage) {
		t.Errorf("get err = %v, want ErrStorage", err)
	}
}
