package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gather/internal/application/listutil"
	"gather/internal/application/orchestrators"
	"gather/internal/application/projections"
	"gather/internal/domain/eventschedule"
	"gather/internal/domain/person"
)

type registerFirstTimerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// personView is the wire form of a person.
type personView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	PromotedAt *time.Time `json:"promoted_at,omitempty"`
}

func newPersonView(p person.Person) personView {
	v := personView{ID: p.ID, Name: p.Name, Email: p.Email, Kind: p.Kind, Status: p.Status}
	if !p.PromotedAt.IsZero() {
		at := p.PromotedAt.UTC()
		v.PromotedAt = &at
	}
	return v
}

type candidateView struct {
	PersonID         string `json:"person_id"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	UniqueActualDays int    `json:"unique_actual_days"`
	Eligible         bool   `json:"eligible"`
}

type promotionsView struct {
	Threshold  int             `json:"threshold"`
	Candidates []candidateView `json:"candidates"`
}

type promoteView struct {
	Person           personView `json:"person"`
	UniqueActualDays int        `json:"unique_actual_days"`
	WelcomeSent      bool       `json:"welcome_sent"`
}

type kindCountsView struct {
	Members     int `json:"members"`
	FirstTimers int `json:"first_timers"`
	Total       int `json:"total"`
}

func newKindCountsView(k projections.KindCounts) kindCountsView {
	return kindCountsView{Members: k.Members, FirstTimers: k.FirstTimers, Total: k.Total()}
}

type eventAttendanceView struct {
	Schedule      scheduleView   `json:"schedule"`
	PreRegistered kindCountsView `json:"pre_registered"`
	Attended      kindCountsView `json:"attended"`
	Scans         int            `json:"scans"`
}

type peopleView struct {
	People []personView      `json:"people"`
	Page   listutil.PageInfo `json:"page"`
}

type personAttendanceView struct {
	Person           personView   `json:"person"`
	UniqueActualDays int          `json:"unique_actual_days"`
	LastCheckIn      *time.Time   `json:"last_check_in,omitempty"`
	Records          []recordView `json:"records"`
}

// handleRegisterFirstTimer handles POST /api/first-timers (kiosk "New Comer" form).
func handleRegisterFirstTimer(w http.ResponseWriter, r *http.Request) {
	var req registerFirstTimerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := orchestrators.ExecuteRegisterFirstTimer(r.Context(), orchestrators.RegisterFirstTimerInput{
		Name:  req.Name,
		Email: req.Email,
	}, orchestrators.RegisterFirstTimerDeps{
		PersonStore: stores.PersonStore,
		GenerateID:  generateID,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPersonView(p))
}

// handleGetPromotions handles GET /api/promotions?threshold=N&eligible=true (admin).
func handleGetPromotions(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", promotionThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query := projections.GetPromotionCandidatesQuery{
		Threshold:    threshold,
		EligibleOnly: r.URL.Query().Get("eligible") == "true",
	}
	results, err := projections.QueryGetPromotionCandidates(r.Context(), query, projections.GetPromotionCandidatesDeps{
		AttendanceStore: stores.AttendanceStore,
		PersonStore:     stores.PersonStore,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	view := promotionsView{Threshold: threshold, Candidates: make([]candidateView, 0, len(results))}
	if view.Threshold <= 0 {
		view.Threshold = promotionThreshold
	}
	for _, c := range results {
		view.Candidates = append(view.Candidates, candidateView{
			PersonID:         c.PersonID,
			Name:             c.Name,
			Email:            c.Email,
			UniqueActualDays: c.UniqueActualDays,
			Eligible:         c.Eligible,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePromoteFirstTimer handles POST /api/first-timers/{id}/promote?threshold=N (admin).
// The optional threshold matches the one GET /api/promotions accepts.
func handlePromoteFirstTimer(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", promotionThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := orchestrators.ExecutePromoteFirstTimer(r.Context(), orchestrators.PromoteFirstTimerInput{
		PersonID:  chi.URLParam(r, "id"),
		Threshold: threshold,
	}, orchestrators.PromoteFirstTimerDeps{
		PersonStore:     stores.PersonStore,
		AttendanceStore: stores.AttendanceStore,
		Sender:          emailSender,
		Now:             timeNow,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	appMetrics.Promotion()
	writeJSON(w, http.StatusOK, promoteView{
		Person:           newPersonView(res.Person),
		UniqueActualDays: res.UniqueActualDays,
		WelcomeSent:      res.WelcomeSent,
	})
}

// handleGetEventAttendance handles GET /api/attendance (admin).
// Without ?pre_reg_start_date and ?event_date it summarises the current schedule.
func handleGetEventAttendance(w http.ResponseWriter, r *http.Request) {
	var sched eventschedule.Schedule
	preReg, event := r.URL.Query().Get("pre_reg_start_date"), r.URL.Query().Get("event_date")
	if preReg != "" || event != "" {
		s, err := eventschedule.Parse(preReg, event)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		sched = s
	} else {
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
		sched = res.Schedule
	}

	res, err := projections.QueryGetEventAttendance(r.Context(), projections.GetEventAttendanceQuery{Schedule: sched},
		projections.GetEventAttendanceDeps{AttendanceStore: stores.AttendanceStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventAttendanceView{
		Schedule:      newScheduleView(res.Schedule, false),
		PreRegistered: newKindCountsView(res.PreRegistered),
		Attended:      newKindCountsView(res.Attended),
		Scans:         res.Scans,
	})
}

// handleGetPersonAttendance handles GET /api/people/{id}/attendance (admin).
func handleGetPersonAttendance(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetPersonAttendance(r.Context(),
		projections.GetPersonAttendanceQuery{PersonID: chi.URLParam(r, "id")},
		projections.GetPersonAttendanceDeps{
			PersonStore:     stores.PersonStore,
			AttendanceStore: stores.AttendanceStore,
		})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	view := personAttendanceView{
		Person:           newPersonView(res.Person),
		UniqueActualDays: res.UniqueActualDays,
		Records:          make([]recordView, 0, len(res.Records)),
	}
	if !res.LastCheckIn.IsZero() {
		last := res.LastCheckIn.UTC()
		view.LastCheckIn = &last
	}
	for _, rec := range res.Records {
		view.Records = append(view.Records, newRecordView(rec))
	}
	writeJSON(w, http.StatusOK, view)
}

// peopleFilters are the accepted values for the people list filters.
var peopleFilters = map[string][]string{
	"kind":   {person.KindMember, person.KindFirstTimer},
	"status": {person.StatusActive, person.StatusArchived},
}

// handleListPeople handles GET /api/people?kind=&status=&page=&per_page= (admin).
func handleListPeople(w http.ResponseWriter, r *http.Request) {
	filters, err := listutil.ParseFilterParams(r.URL.Query(), peopleFilters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := projections.QueryGetPeople(r.Context(), projections.GetPeopleQuery{
		Kind:   filters["kind"],
		Status: filters["status"],
		Page:   listutil.ParsePageParams(r.URL.Query()),
	}, projections.GetPeopleDeps{PersonStore: stores.PersonStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	view := peopleView{People: make([]personView, 0, len(res.People)), Page: res.Page}
	for _, p := range res.People {
		view.People = append(view.People, newPersonView(p))
	}
	writeJSON(w, http.StatusOK, view)
}

// handleArchivePerson handles POST /api/people/{id}/archive (admin).
func handleArchivePerson(w http.ResponseWriter, r *http.Request) {
	p, err := orchestrators.ExecuteArchivePerson(r.Context(),
		orchestrators.ArchivePersonInput{PersonID: chi.URLParam(r, "id")},
		orchestrators.ArchivePersonDeps{PersonStore: stores.PersonStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPersonView(p))
}

// handleRestorePerson handles POST /api/people/{id}/restore (admin).
func handleRestorePerson(w http.ResponseWriter, r *http.Request) {
	p, err := orchestrators.ExecuteRestorePerson(r.Context(),
		orchestrators.ArchivePersonInput{PersonID: chi.URLParam(r, "id")},
		orchestrators.ArchivePersonDeps{PersonStore: stores.PersonStore})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPersonView(p))
}
