package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"gather/internal/adapters/email"
	"gather/internal/adapters/http/metrics"
	"gather/internal/adapters/http/perf"
	"gather/internal/adapters/storage"
	attendanceStore "gather/internal/adapters/storage/attendance"
	scheduleStore "gather/internal/adapters/storage/eventschedule"
	personStore "gather/internal/adapters/storage/person"
	"gather/internal/config"
	"gather/internal/domain/eventschedule"
)

const testAdminPassword = "correct horse"

var (
	testHashOnce sync.Once
	testHash     string
)

func adminHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		testHash = string(h)
	})
	return testHash
}

// recordingSender captures welcome emails.
type recordingSender struct {
	mu   sync.Mutex
	sent []email.SendRequest
}

// Send implements email.Sender.
// POST: request appended; always succeeds
func (s *recordingSender) Send(_ context.Context, req email.SendRequest) (email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return email.SendResult{MessageID: "test", SentAt: time.Now()}, nil
}

type testServer struct {
	db      *sql.DB
	handler http.Handler
	stores  *Stores
	metrics *metrics.Metrics
	sender  *recordingSender
	now     time.Time
}

// newTestServer wires the real SQLite stores behind the router with the
// schedule seeded to 2024-05-28..2024-06-02.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	sched := scheduleStore.NewSQLiteStore(db)
	seed, err := eventschedule.Parse("2024-05-28", "2024-06-02")
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	if err := sched.Init(context.Background(), seed); err != nil {
		t.Fatalf("Init schedule: %v", err)
	}

	ts := &testServer{
		stores: &Stores{
			ScheduleStore:   sched,
			AttendanceStore: attendanceStore.NewSQLiteStore(db),
			PersonStore:     personStore.NewSQLiteStore(db),
		},
		db:      db,
		metrics: metrics.New(),
		sender:  &recordingSender{},
		now:     time.Date(2024, 5, 29, 10, 0, 0, 0, time.UTC),
	}
	timeNow = func() time.Time { return ts.now }
	t.Cleanup(func() { timeNow = time.Now })
	SetEmailSender(ts.sender)
	t.Cleanup(func() { SetEmailSender(nil) })

	cfg := config.Config{
		Env:                "test",
		PromotionThreshold: 4,
		AdminPasswordHash:  adminHash(t),
		CSRFKey:            bytes.Repeat([]byte{1}, 32),
		TrustedOrigins:     []string{"localhost:8080"},
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}
	ts.handler = NewRouter(ts.stores, cfg, perf.NewCollector(100), ts.metrics)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.SetBasicAuth("admin", testAdminPassword)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

// TestGetSchedule_RollsOverOnLoad walks Scenario B through the API.
func TestGetSchedule_RollsOverOnLoad(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/schedule", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	got := decode[scheduleView](t, rr)
	if got.EventDate != "2024-06-02" || got.RolledOver {
		t.Errorf("schedule = %+v, want unchanged 2024-06-02", got)
	}
	if !got.EventStart.Equal(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("event_start = %v", got.EventStart)
	}

	ts.now = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	got = decode[scheduleView](t, ts.do(t, http.MethodGet, "/api/schedule", "", false))
	if got.PreRegStartDate != "2024-06-11" || got.EventDate != "2024-06-16" || !got.RolledOver {
		t.Errorf("schedule = %+v, want rolled to 2024-06-11..2024-06-16", got)
	}

	got = decode[scheduleView](t, ts.do(t, http.MethodGet, "/api/schedule", "", false))
	if got.RolledOver {
		t.Error("second load reported another rollover")
	}
}

// TestCheckIn_Classification walks Scenario A through the API.
func TestCheckIn_Classification(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		wantStatus int
		wantType   string
	}{
		{"pre-registration", time.Date(2024, 5, 29, 10, 0, 0, 0, time.UTC), http.StatusCreated, "pre_registration"},
		{"one second before start", time.Date(2024, 6, 2, 8, 59, 59, 0, time.UTC), http.StatusCreated, "pre_registration"},
		{"event start", time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC), http.StatusCreated, "actual"},
		{"too early", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.now = tt.now

			rr := ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"p1","person_kind":"first_timer","method":"qr"}`, false)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantStatus == http.StatusCreated {
				rec := decode[recordView](t, rr)
				if rec.Type != tt.wantType || !rec.Timestamp.Equal(tt.now) || rec.ID == "" {
					t.Errorf("record = %+v", rec)
				}
				return
			}

			body := decode[errorBody](t, rr)
			if body.Reason != "OUTSIDE_WINDOW" || body.Error != "check-in not open at this time" {
				t.Errorf("body = %+v", body)
			}
			records, err := ts.stores.AttendanceStore.List(context.Background(), attendanceStore.ListFilter{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(records) != 0 {
				t.Errorf("rejected check-in stored %d records", len(records))
			}
		})
	}
}

// TestCheckIn_ScanInstant verifies a supplied scan instant drives classification.
func TestCheckIn_ScanInstant(t *testing.T) {
	ts := newTestServer(t)
	ts.now = time.Date(2024, 6, 2, 9, 0, 3, 0, time.UTC)

	rr := ts.do(t, http.MethodPost, "/api/checkin",
		`{"person_id":"p1","person_kind":"member","method":"face","scan_instant":"2024-06-02T20:59:58+12:00"}`, false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if rec := decode[recordView](t, rr); rec.Type != "pre_registration" {
		t.Errorf("type = %q, want pre_registration", rec.Type)
	}
}

// TestCheckIn_ScanInstantOutOfRange verifies a future or stale scan instant is refused without a write.
func TestCheckIn_ScanInstantOutOfRange(t *testing.T) {
	for _, scan := range []string{"2099-01-01T00:00:00Z", "2024-05-29T09:00:00Z"} {
		t.Run(scan, func(t *testing.T) {
			ts := newTestServer(t)
			ts.now = time.Date(2024, 5, 29, 10, 0, 0, 0, time.UTC)

			rr := ts.do(t, http.MethodPost, "/api/checkin",
				`{"person_id":"p1","person_kind":"first_timer","method":"qr","scan_instant":"`+scan+`"}`, false)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rr.Code, rr.Body)
			}
			records, err := ts.stores.AttendanceStore.List(context.Background(), attendanceStore.ListFilter{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(records) != 0 {
				t.Errorf("stored %d records for an out-of-range scan", len(records))
			}
		})
	}
}

// TestCheckIn_BadRequests verifies malformed and invalid bodies are 400s.
func TestCheckIn_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "not json", body: `person_id=p1`},
		{name: "unknown field", body: `{"person_id":"p1","person_kind":"member","method":"qr","extra":1}`},
		{name: "missing person", body: `{"person_kind":"member","method":"qr"}`, wantField: "person_id"},
		{name: "bad kind", body: `{"person_id":"p1","person_kind":"guest","method":"qr"}`, wantField: "person_kind"},
		{name: "bad method", body: `{"person_id":"p1","person_kind":"member","method":"nfc"}`, wantField: "method"},
		{name: "bad scan instant", body: `{"person_id":"p1","person_kind":"member","method":"qr","scan_instant":"yesterday"}`, wantField: "scan_instant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(t, http.MethodPost, "/api/checkin", tt.body, false)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rr.Code, rr.Body)
			}
			if tt.wantField == "" {
				return
			}
			if body := decode[errorBody](t, rr); body.Fields[tt.wantField] == "" {
				t.Errorf("fields = %v, want an entry for %s", body.Fields, tt.wantField)
			}
		})
	}
}

// TestRegisterFirstTimer covers kiosk registration outcomes.
func TestRegisterFirstTimer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Ada","email":"ada@example.com"}`, false)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	p := decode[personView](t, rr)
	if p.ID == "" || p.Kind != "first_timer" || p.Status != "active" {
		t.Errorf("person = %+v", p)
	}

	if rr := ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Ada Again","email":"ADA@example.com"}`, false); rr.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Bo","email":"not-an-email"}`, false); rr.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"   "}`, false); rr.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", rr.Code)
	}
}

// TestAdminRoutesRequireAuth verifies every admin route challenges anonymous callers.
func TestAdminRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)
	routes := []struct{ method, path string }{
		{http.MethodPut, "/api/schedule"},
		{http.MethodGet, "/api/promotions"},
		{http.MethodPost, "/api/first-timers/p1/promote"},
		{http.MethodGet, "/api/attendance"},
		{http.MethodGet, "/api/people"},
		{http.MethodGet, "/api/people/p1/attendance"},
		{http.MethodPost, "/api/people/p1/archive"},
		{http.MethodPost, "/api/people/p1/restore"},
		{http.MethodGet, "/api/attendance/records"},
		{http.MethodGet, "/api/attendance/records/r1"},
		{http.MethodGet, "/debug/perf"},
	}
	for _, route := range routes {
		if rr := ts.do(t, route.method, route.path, "", false); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", route.method, route.path, rr.Code)
		}
	}
}

// TestPromotionFlow checks in a first-timer on four event days, lists them, and promotes them.
func TestPromotionFlow(t *testing.T) {
	ts := newTestServer(t)

	p := decode[personView](t, ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Ada","email":"ada@example.com"}`, false))
	checkIn := `{"person_id":"` + p.ID + `","person_kind":"first_timer","method":"qr"}`

	for week := 0; week < 3; week++ {
		ts.now = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week)
		for i := 0; i < 2; i++ { // same-day duplicates count once
			if rr := ts.do(t, http.MethodPost, "/api/checkin", checkIn, false); rr.Code != http.StatusCreated {
				t.Fatalf("check-in status = %d, body %s", rr.Code, rr.Body)
			}
		}
	}

	list := decode[promotionsView](t, ts.do(t, http.MethodGet, "/api/promotions", "", true))
	if list.Threshold != 4 || len(list.Candidates) != 1 {
		t.Fatalf("promotions = %+v", list)
	}
	if c := list.Candidates[0]; c.UniqueActualDays != 3 || c.Eligible || c.Name != "Ada" {
		t.Errorf("candidate = %+v, want 3 days not eligible", c)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote", "", true); rr.Code != http.StatusConflict {
		t.Errorf("early promote status = %d, want 409", rr.Code)
	}

	ts.now = time.Date(2024, 6, 23, 10, 0, 0, 0, time.UTC)
	if rr := ts.do(t, http.MethodPost, "/api/checkin", checkIn, false); rr.Code != http.StatusCreated {
		t.Fatalf("fourth check-in status = %d", rr.Code)
	}
	list = decode[promotionsView](t, ts.do(t, http.MethodGet, "/api/promotions?eligible=true", "", true))
	if len(list.Candidates) != 1 || !list.Candidates[0].Eligible {
		t.Fatalf("eligible candidates = %+v", list.Candidates)
	}

	rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("promote status = %d, body %s", rr.Code, rr.Body)
	}
	res := decode[promoteView](t, rr)
	if res.Person.Kind != "member" || res.Person.PromotedAt == nil || res.UniqueActualDays != 4 || !res.WelcomeSent {
		t.Errorf("promote result = %+v", res)
	}
	if len(ts.sender.sent) != 1 || ts.sender.sent[0].To[0] != "ada@example.com" {
		t.Errorf("welcome emails = %+v", ts.sender.sent)
	}

	list = decode[promotionsView](t, ts.do(t, http.MethodGet, "/api/promotions", "", true))
	if len(list.Candidates) != 0 {
		t.Errorf("promoted person still listed: %+v", list.Candidates)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote", "", true); rr.Code != http.StatusConflict {
		t.Errorf("second promote status = %d, want 409", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/nobody/promote", "", true); rr.Code != http.StatusNotFound {
		t.Errorf("unknown promote status = %d, want 404", rr.Code)
	}
}

// TestPromotions_ThresholdQuery verifies the threshold override and its validation.
func TestPromotions_ThresholdQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.now = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"p9","person_kind":"first_timer","method":"face"}`, false)

	list := decode[promotionsView](t, ts.do(t, http.MethodGet, "/api/promotions?threshold=1", "", true))
	if list.Threshold != 1 || len(list.Candidates) != 1 || !list.Candidates[0].Eligible {
		t.Errorf("promotions = %+v", list)
	}
	if rr := ts.do(t, http.MethodGet, "/api/promotions?threshold=many", "", true); rr.Code != http.StatusBadRequest {
		t.Errorf("bad threshold status = %d, want 400", rr.Code)
	}
}

// TestPromote_ThresholdQuery verifies promote honors the same threshold override as the listing.
func TestPromote_ThresholdQuery(t *testing.T) {
	ts := newTestServer(t)
	p := decode[personView](t, ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Grace"}`, false))
	checkIn := `{"person_id":"` + p.ID + `","person_kind":"first_timer","method":"qr"}`
	for week := 0; week < 3; week++ {
		ts.now = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week)
		if rr := ts.do(t, http.MethodPost, "/api/checkin", checkIn, false); rr.Code != http.StatusCreated {
			t.Fatalf("check-in status = %d, body %s", rr.Code, rr.Body)
		}
	}

	list := decode[promotionsView](t, ts.do(t, http.MethodGet, "/api/promotions?threshold=3", "", true))
	if len(list.Candidates) != 1 || !list.Candidates[0].Eligible {
		t.Fatalf("candidates at threshold 3 = %+v", list.Candidates)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote", "", true); rr.Code != http.StatusConflict {
		t.Errorf("promote at default threshold status = %d, want 409", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote?threshold=x", "", true); rr.Code != http.StatusBadRequest {
		t.Errorf("bad threshold status = %d, want 400", rr.Code)
	}
	rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote?threshold=3", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("promote at threshold 3 status = %d, body %s", rr.Code, rr.Body)
	}
	if res := decode[promoteView](t, rr); res.Person.Kind != "member" || res.UniqueActualDays != 3 {
		t.Errorf("promote result = %+v", res)
	}
}

// TestArchiveRestorePerson covers the archive lifecycle and its effect on promotion.
func TestArchiveRestorePerson(t *testing.T) {
	ts := newTestServer(t)
	p := decode[personView](t, ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Linus"}`, false))

	rr := ts.do(t, http.MethodPost, "/api/people/"+p.ID+"/archive", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body %s", rr.Code, rr.Body)
	}
	if v := decode[personView](t, rr); v.Status != "archived" {
		t.Errorf("archived status = %q", v.Status)
	}
	if rr := ts.do(t, http.MethodPost, "/api/people/"+p.ID+"/archive", "", true); rr.Code != http.StatusConflict {
		t.Errorf("second archive status = %d, want 409", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/first-timers/"+p.ID+"/promote?threshold=0", "", true); rr.Code != http.StatusConflict {
		t.Errorf("promote archived status = %d, want 409", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/people/"+p.ID+"/restore", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body %s", rr.Code, rr.Body)
	}
	if v := decode[personView](t, rr); v.Status != "active" {
		t.Errorf("restored status = %q", v.Status)
	}
	if rr := ts.do(t, http.MethodPost, "/api/people/"+p.ID+"/restore", "", true); rr.Code != http.StatusConflict {
		t.Errorf("second restore status = %d, want 409", rr.Code)
	}
	if rr := ts.do(t, http.MethodPost, "/api/people/nobody/archive", "", true); rr.Code != http.StatusNotFound {
		t.Errorf("unknown archive status = %d, want 404", rr.Code)
	}
}

// TestAttendanceRecords pages through the stored log and fetches one record.
func TestAttendanceRecords(t *testing.T) {
	ts := newTestServer(t)
	for day := 0; day < 3; day++ {
		ts.now = time.Date(2024, 5, 29, 10, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		body := `{"person_id":"p` + strconv.Itoa(day) + `","person_kind":"member","method":"qr"}`
		if rr := ts.do(t, http.MethodPost, "/api/checkin", body, false); rr.Code != http.StatusCreated {
			t.Fatalf("check-in status = %d, body %s", rr.Code, rr.Body)
		}
	}

	first := decode[recordsView](t, ts.do(t, http.MethodGet, "/api/attendance/records?per_page=2", "", true))
	if len(first.Records) != 2 || !first.Page.HasMore || first.Page.NextPage != 2 {
		t.Fatalf("first page = %+v", first)
	}
	second := decode[recordsView](t, ts.do(t, http.MethodGet, "/api/attendance/records?per_page=2&page=2", "", true))
	if len(second.Records) != 1 || second.Page.HasMore {
		t.Fatalf("second page = %+v", second)
	}

	id := first.Records[0].ID
	rr := ts.do(t, http.MethodGet, "/api/attendance/records/"+id, "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("get record status = %d, body %s", rr.Code, rr.Body)
	}
	if got := decode[recordView](t, rr); got.ID != id || got.Type != "pre_registration" {
		t.Errorf("record = %+v", got)
	}
	if rr := ts.do(t, http.MethodGet, "/api/attendance/records/missing", "", true); rr.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rr.Code)
	}
}

// TestPutSchedule covers admin edits.
func TestPutSchedule(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPut, "/api/schedule", `{"pre_reg_start_date":"2024-06-04","event_date":"2024-06-09"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if got := decode[scheduleView](t, ts.do(t, http.MethodGet, "/api/schedule", "", false)); got.EventDate != "2024-06-09" {
		t.Errorf("event_date = %s, want 2024-06-09", got.EventDate)
	}

	bad := []string{
		`{"pre_reg_start_date":"2024-06-10","event_date":"2024-06-09"}`,
		`{"pre_reg_start_date":"June 4","event_date":"2024-06-09"}`,
		`{"event_date":"2024-06-09"}`,
	}
	for _, body := range bad {
		if rr := ts.do(t, http.MethodPut, "/api/schedule", body, true); rr.Code != http.StatusBadRequest {
			t.Errorf("PUT %s status = %d, want 400", body, rr.Code)
		}
	}
}

// TestEventAttendance verifies per-window distinct counts.
func TestEventAttendance(t *testing.T) {
	ts := newTestServer(t)
	scans := []struct {
		now  time.Time
		body string
	}{
		{time.Date(2024, 5, 29, 10, 0, 0, 0, time.UTC), `{"person_id":"m1","person_kind":"member","method":"qr"}`},
		{time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC), `{"person_id":"m1","person_kind":"member","method":"qr"}`},
		{time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC), `{"person_id":"m1","person_kind":"member","method":"face"}`},
		{time.Date(2024, 6, 2, 9, 45, 0, 0, time.UTC), `{"person_id":"f1","person_kind":"first_timer","method":"qr"}`},
	}
	for _, s := range scans {
		ts.now = s.now
		if rr := ts.do(t, http.MethodPost, "/api/checkin", s.body, false); rr.Code != http.StatusCreated {
			t.Fatalf("check-in status = %d", rr.Code)
		}
	}

	ts.now = time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	rr := ts.do(t, http.MethodGet, "/api/attendance", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	got := decode[eventAttendanceView](t, rr)
	if got.PreRegistered.Members != 1 || got.PreRegistered.Total != 1 {
		t.Errorf("pre_registered = %+v, want one member", got.PreRegistered)
	}
	if got.Attended.Members != 1 || got.Attended.FirstTimers != 1 || got.Attended.Total != 2 {
		t.Errorf("attended = %+v, want one of each", got.Attended)
	}
	if got.Scans != 4 {
		t.Errorf("scans = %d, want 4", got.Scans)
	}

	past := decode[eventAttendanceView](t, ts.do(t, http.MethodGet, "/api/attendance?pre_reg_start_date=2024-05-21&event_date=2024-05-26", "", true))
	if past.Scans != 0 || past.Schedule.EventDate != "2024-05-26" {
		t.Errorf("past week = %+v", past)
	}
	if rr := ts.do(t, http.MethodGet, "/api/attendance?event_date=2024-05-26", "", true); rr.Code != http.StatusBadRequest {
		t.Errorf("half-specified window status = %d, want 400", rr.Code)
	}
}

// TestPersonAttendance verifies history and the unknown-person 404.
func TestPersonAttendance(t *testing.T) {
	ts := newTestServer(t)
	p := decode[personView](t, ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"Cy"}`, false))

	ts.now = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"`+p.ID+`","person_kind":"first_timer","method":"qr"}`, false)
	ts.now = time.Date(2024, 6, 9, 10, 0, 0, 0, time.UTC)
	ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"`+p.ID+`","person_kind":"first_timer","method":"qr"}`, false)

	rr := ts.do(t, http.MethodGet, "/api/people/"+p.ID+"/attendance", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	got := decode[personAttendanceView](t, rr)
	if got.UniqueActualDays != 2 || len(got.Records) != 2 || got.LastCheckIn == nil || !got.LastCheckIn.Equal(ts.now) {
		t.Errorf("history = %+v", got)
	}
	if !got.Records[0].Timestamp.After(got.Records[1].Timestamp) {
		t.Error("records not newest first")
	}

	if rr := ts.do(t, http.MethodGet, "/api/people/ghost/attendance", "", true); rr.Code != http.StatusNotFound {
		t.Errorf("unknown person status = %d, want 404", rr.Code)
	}
}

// TestListPeople pages through registered first-timers and applies filters.
func TestListPeople(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 11; i++ {
		name := fmt.Sprintf("Guest %02d", i)
		if rr := ts.do(t, http.MethodPost, "/api/first-timers", `{"name":"`+name+`"}`, false); rr.Code != http.StatusCreated {
			t.Fatalf("register %s: status = %d", name, rr.Code)
		}
	}

	rr := ts.do(t, http.MethodGet, "/api/people?kind=first_timer&per_page=10", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	first := decode[peopleView](t, rr)
	if len(first.People) != 10 || !first.Page.HasMore || first.Page.NextPage != 2 {
		t.Errorf("page 1: %d people, info %+v", len(first.People), first.Page)
	}
	if first.People[0].Name != "Guest 00" {
		t.Errorf("first person = %q, want Guest 00", first.People[0].Name)
	}

	second := decode[peopleView](t, ts.do(t, http.MethodGet, "/api/people?kind=first_timer&per_page=10&page=2", "", true))
	if len(second.People) != 1 || second.Page.HasMore || second.People[0].Name != "Guest 10" {
		t.Errorf("page 2 = %+v", second)
	}

	members := decode[peopleView](t, ts.do(t, http.MethodGet, "/api/people?kind=member", "", true))
	if len(members.People) != 0 || members.People == nil {
		t.Errorf("members = %#v, want empty list", members.People)
	}

	if rr := ts.do(t, http.MethodGet, "/api/people?status=deleted", "", true); rr.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", rr.Code)
	}
}

// TestReadPaths_StorageFailureIsRetryable verifies read failures on the admin views are 503s.
func TestReadPaths_StorageFailureIsRetryable(t *testing.T) {
	ts := newTestServer(t)
	ts.db.Close()

	for _, path := range []string{"/api/promotions", "/api/people", "/api/attendance?pre_reg_start_date=2024-05-28&event_date=2024-06-02"} {
		rr := ts.do(t, http.MethodGet, path, "", true)
		if rr.Code != http.StatusServiceUnavailable || rr.Header().Get("Retry-After") == "" {
			t.Errorf("GET %s status = %d Retry-After = %q, want 503 with Retry-After", path, rr.Code, rr.Header().Get("Retry-After"))
		}
		if body := decode[errorBody](t, rr); body.Error != "something went wrong, please try again" {
			t.Errorf("GET %s body = %+v", path, body)
		}
	}
}

// TestOperationalRoutes covers health, metrics and the perf snapshot.
func TestOperationalRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"p1","person_kind":"member","method":"qr"}`, false)
	ts.now = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ts.do(t, http.MethodPost, "/api/checkin", `{"person_id":"p1","person_kind":"member","method":"qr"}`, false)

	if rr := ts.do(t, http.MethodGet, "/healthz", "", false); rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rr.Code)
	}

	rr := ts.do(t, http.MethodGet, "/metrics", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	for _, want := range []string{
		`gather_checkins_total{kind="member",type="pre_registration"} 1`,
		`gather_checkin_rejections_total{reason="OUTSIDE_WINDOW"} 1`,
	} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	ts.now = time.Now()
	rr = ts.do(t, http.MethodGet, "/debug/perf", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("perf status = %d", rr.Code)
	}
	if snap := decode[perf.Snapshot](t, rr); snap.TotalRequests < 2 {
		t.Errorf("perf total_requests = %d, want >= 2", snap.TotalRequests)
	}
}

// TestSecurityHeadersAndUnknownRoute verifies headers and the JSON 404.
func TestSecurityHeadersAndUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/nope", "", false)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if body := decode[errorBody](t, rr); body.Error != "not found" {
		t.Errorf("body = %+v", body)
	}
}
