package web

import (
	"net/http"
	"time"

	"gather/internal/application/orchestrators"
	"gather/internal/domain/eventschedule"
)

// scheduleView is the wire form of the current schedule.
type scheduleView struct {
	PreRegStartDate string    `json:"pre_reg_start_date"`
	EventDate       string    `json:"event_date"`
	PreRegStart     time.Time `json:"pre_reg_start"`
	EventStart      time.Time `json:"event_start"`
	RolledOver      bool      `json:"rolled_over,omitempty"`
}

func newScheduleView(s eventschedule.Schedule, rolled bool) scheduleView {
	return scheduleView{
		PreRegStartDate: eventschedule.FormatDate(s.PreRegStartDate),
		EventDate:       eventschedule.FormatDate(s.EventDate),
		PreRegStart:     s.PreRegStart(),
		EventStart:      s.EventStart(),
		RolledOver:      rolled,
	}
}

type setScheduleRequest struct {
	PreRegStartDate string `json:"pre_reg_start_date" validate:"required,datetime=2006-01-02"`
	EventDate       string `json:"event_date" validate:"required,datetime=2006-01-02"`
}

// handleGetSchedule handles GET /api/schedule, rolling an expired schedule forward.
func handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := orchestrators.ExecuteLoadSchedule(r.Context(), orchestrators.LoadScheduleDeps{
		ScheduleStore: stores.ScheduleStore,
		Now:           timeNow,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if res.Rolled {
		appMetrics.Rollover()
	}
	writeJSON(w, http.StatusOK, newScheduleView(res.Schedule, res.Rolled))
}

// handlePutSchedule handles PUT /api/schedule (admin).
func handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	var req setScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s, err := orchestrators.ExecuteSetSchedule(r.Context(), orchestrators.SetScheduleInput{
		PreRegStartDate: req.PreRegStartDate,
		EventDate:       req.EventDate,
	}, orchestrators.SetScheduleDeps{ScheduleStore: stores.ScheduleStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScheduleView(s, false))
}
