package projections

import (
	"context"
	"database/sql"
	"errors"

	"gather/internal/adapters/storage/attendance"
	"gather/internal/application/listutil"
	domain "gather/internal/domain/attendance"
)

// AttendanceRecordReader pages through the raw check-in log.
type AttendanceRecordReader interface {
	GetByID(ctx context.Context, id string) (domain.Record, error)
	List(ctx context.Context, filter attendance.ListFilter) ([]domain.Record, error)
}

// GetAttendanceRecordsQuery names the page of the log to read.
type GetAttendanceRecordsQuery struct {
	Page listutil.PageParams
}

// GetAttendanceRecordsDeps holds dependencies for the log reads.
type GetAttendanceRecordsDeps struct {
	AttendanceStore AttendanceRecordReader
}

// GetAttendanceRecordsResult is one page of the log, oldest first.
type GetAttendanceRecordsResult struct {
	Records []domain.Record
	Page    listutil.PageInfo
}

// QueryGetAttendanceRecords reads the append-only check-in log one page at a time.
// PRE: query.Page has Page >= 1 and PerPage > 0
// POST: records are returned exactly as stored, oldest first
func QueryGetAttendanceRecords(ctx context.Context, query GetAttendanceRecordsQuery, deps GetAttendanceRecordsDeps) (GetAttendanceRecordsResult, error) {
	rows, err := deps.AttendanceStore.List(ctx, attendance.ListFilter{
		Limit:  query.Page.FetchLimit(),
		Offset: query.Page.Offset(),
	})
	if err != nil {
		return GetAttendanceRecordsResult{}, storageErr("list attendance", err)
	}
	if rows == nil {
		rows = []domain.Record{}
	}
	records, info := listutil.Trim(rows, query.Page)
	return GetAttendanceRecordsResult{Records: records, Page: info}, nil
}

// QueryGetAttendanceRecord reads one record.
// POST: Returns an error wrapping sql.ErrNoRows if the record is unknown
func QueryGetAttendanceRecord(ctx context.Context, id string, deps GetAttendanceRecordsDeps) (domain.Record, error) {
	r, err := deps.AttendanceStore.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, err
	}
	if err != nil {
		return domain.Record{}, storageErr("load attendance record", err)
	}
	return r, nil
}
