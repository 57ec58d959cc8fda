package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gather/internal/application/listutil"
	"gather/internal/application/projections"
)

type recordsView struct {
	Records []recordView      `json:"records"`
	Page    listutil.PageInfo `json:"page"`
}

// handleListAttendanceRecords handles GET /api/attendance/records?page=&per_page= (admin).
// Records come back exactly as stored, oldest first.
func handleListAttendanceRecords(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetAttendanceRecords(r.Context(),
		projections.GetAttendanceRecordsQuery{Page: listutil.ParsePageParams(r.URL.Query())},
		projections.GetAttendanceRecordsDeps{AttendanceStore: stores.AttendanceStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	view := recordsView{Records: make([]recordView, 0, len(res.Records)), Page: res.Page}
	for _, rec := range res.Records {
		view.Records = append(view.Records, newRecordView(rec))
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGetAttendanceRecord handles GET /api/attendance/records/{id} (admin).
func handleGetAttendanceRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := projections.QueryGetAttendanceRecord(r.Context(), chi.URLParam(r, "id"),
		projections.GetAttendanceRecordsDeps{AttendanceStore: stores.AttendanceStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(rec))
}
