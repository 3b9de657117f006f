package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	redisclient "github.com/hackgods/gaci-appointment-queue/internal/redis"
)

var testLoc = time.FixedZone("BRT", -3*60*60)

type testEnv struct {
	router http.Handler
	repo   *appointment.MemoryRepository
	now    *time.Time
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, testLoc)
	env := &testEnv{repo: appointment.NewMemoryRepository(), now: &now}

	svc := appointment.NewService(env.repo, appointment.NewMemorySettings(limit), redisclient.NewLocalLocker(),
		appointment.WithLocation(testLoc),
		appointment.WithClock(func() time.Time { return *env.now }),
	)
	env.router = NewRouter(RouterConfig{
		Service: svc,
		Checks:  map[string]Check{},
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) create(t *testing.T, name string) AppointmentResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/appointments", AppointmentRequest{
		FullName:       name,
		PrimaryContact: "38999990000",
		Address:        "Rua A, 10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s: status %d: %s", name, rec.Code, rec.Body.String())
	}
	var resp AppointmentResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (%s)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func TestCreateAppointmentHandler(t *testing.T) {
	env := newTestEnv(t, 20)

	got := env.create(t, "Ana")
	if got.Status != "waiting" {
		t.Errorf("expected waiting, got %s", got.Status)
	}
	if got.ScheduledAt != nil {
		t.Error("expected no scheduled time")
	}
	if got.Attendance != nil {
		t.Error("expected null attendance")
	}
	if got.City != appointment.DefaultCity {
		t.Errorf("expected default city, got %q", got.City)
	}
}

func TestCreateAppointmentBadRequests(t *testing.T) {
	env := newTestEnv(t, 20)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/appointments", AppointmentRequest{FullName: "Ana"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation_error" {
		t.Errorf("expected validation_error, got %s", code)
	}
}

func TestGetAppointmentHandler(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")

	rec := env.do(t, http.MethodGet, "/appointments/"+a.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "appointment_not_found" {
		t.Errorf("expected appointment_not_found, got %s", code)
	}
}

func TestConfirmConflicts(t *testing.T) {
	env := newTestEnv(t, 1)
	a := env.create(t, "Ana")
	b := env.create(t, "Bruno")

	rec := env.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/confirm", ConfirmRequest{Date: "2025-03-10", Time: "08:10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm A: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var confirmed AppointmentResponse
	decode(t, rec, &confirmed)
	if confirmed.Status != "confirmed" || confirmed.ScheduledAt == nil {
		t.Errorf("unexpected confirmed appointment: %+v", confirmed)
	}

	tests := []struct {
		name string
		req  ConfirmRequest
		code int
		err  string
	}{
		{"same slot", ConfirmRequest{Date: "2025-03-10", Time: "08:10"}, http.StatusConflict, "slot_taken"},
		{"limit met", ConfirmRequest{Date: "2025-03-10", Time: "08:30"}, http.StatusConflict, "capacity_exceeded"},
		{"not a slot", ConfirmRequest{Date: "2025-03-10", Time: "12:00"}, http.StatusBadRequest, "validation_error"},
		{"bad date", ConfirmRequest{Date: "10/03/2025", Time: "08:30"}, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/appointments/"+b.ID.String()+"/confirm", tt.req)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.err {
				t.Errorf("expected %s, got %s", tt.err, code)
			}
		})
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")
	base := "/appointments/" + a.ID.String()

	rec := env.do(t, http.MethodPost, base+"/revert", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("revert waiting: expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_status_transition" {
		t.Errorf("expected invalid_status_transition, got %s", code)
	}

	steps := []struct {
		method, path string
		body         any
		status       string
	}{
		{http.MethodPost, base + "/confirm", ConfirmRequest{Date: "2025-03-10", Time: "08:10"}, "confirmed"},
		{http.MethodPost, base + "/revert", nil, "waiting"},
		{http.MethodPost, base + "/archive", nil, "archived"},
		{http.MethodPost, base + "/attendance", AttendanceRequest{Attendance: "no_show"}, "archived"},
		{http.MethodPost, base + "/postpone", nil, "waiting"},
		{http.MethodPost, base + "/priority", nil, "waiting"},
	}
	for _, s := range steps {
		rec := env.do(t, s.method, s.path, s.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", s.path, rec.Code, rec.Body.String())
		}
		var got AppointmentResponse
		decode(t, rec, &got)
		if got.Status != s.status {
			t.Errorf("%s: expected %s, got %s", s.path, s.status, got.Status)
		}
	}

	rec = env.do(t, http.MethodGet, base, nil)
	var final AppointmentResponse
	decode(t, rec, &final)
	if !final.IsPriority {
		t.Error("expected priority after toggle")
	}
	if final.Attendance != nil {
		t.Error("postpone should clear attendance")
	}
}

func TestAttendanceValidation(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")
	env.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/archive", nil)

	rec := env.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/attendance", AttendanceRequest{Attendance: "late"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestEditAndDelete(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")
	path := "/appointments/" + a.ID.String()

	rec := env.do(t, http.MethodPut, path, AppointmentRequest{
		FullName:       "Ana Lima",
		PrimaryContact: "38911112222",
		Address:        "Rua C, 3",
		City:           "Unaí",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", rec.Code)
	}
	var edited AppointmentResponse
	decode(t, rec, &edited)
	if edited.FullName != "Ana Lima" || edited.City != "Unaí" {
		t.Errorf("unexpected edit result: %+v", edited)
	}

	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestWaitingListHandler(t *testing.T) {
	env := newTestEnv(t, 20)

	env.create(t, "first")
	*env.now = env.now.Add(time.Minute)
	second := env.create(t, "second")
	env.do(t, http.MethodPost, "/appointments/"+second.ID.String()+"/priority", nil)

	*env.now = env.now.Add(26 * 24 * time.Hour)

	rec := env.do(t, http.MethodGet, "/waiting-list", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []WaitingEntryResponse
	decode(t, rec, &entries)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].FullName != "second" {
		t.Errorf("expected priority entry first, got %s", entries[0].FullName)
	}
	if !entries[1].ExpiringSoon || entries[1].DaysWaiting != 26 {
		t.Errorf("unexpected expiry info: %+v", entries[1])
	}
}

func TestCalendarAndSettings(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")
	env.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/confirm", ConfirmRequest{Date: "2025-03-10", Time: "14:10"})

	rec := env.do(t, http.MethodPut, "/settings/daily-limit", map[string]int{"daily_limit": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("set limit: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/settings", nil)
	var settings SettingsResponse
	decode(t, rec, &settings)
	if settings.DailyLimit != 3 {
		t.Errorf("expected limit 3, got %d", settings.DailyLimit)
	}

	rec = env.do(t, http.MethodGet, "/calendar/2025-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: expected 200, got %d", rec.Code)
	}
	var av appointment.DayAvailability
	decode(t, rec, &av)
	if len(av.Slots) != 20 || av.OccupiedCount != 1 || av.Remaining != 2 {
		t.Errorf("unexpected availability: %+v", av)
	}

	rec = env.do(t, http.MethodGet, "/calendar/march", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/settings/daily-limit", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing limit: expected 400, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/settings/daily-limit", map[string]int{"daily_limit": -2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: expected 400, got %d", rec.Code)
	}
}

func TestSweepHandler(t *testing.T) {
	env := newTestEnv(t, 20)
	a := env.create(t, "Ana")
	env.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/confirm", ConfirmRequest{Date: "2025-03-10", Time: "08:10"})

	*env.now = time.Date(2025, 3, 12, 8, 0, 0, 0, testLoc)

	rec := env.do(t, http.MethodPost, "/sweep", nil)
	var resp SweepResponse
	decode(t, rec, &resp)
	if resp.Archived != 1 {
		t.Errorf("expected 1 archived, got %d", resp.Archived)
	}

	rec = env.do(t, http.MethodGet, "/archived", nil)
	var archived []AppointmentResponse
	decode(t, rec, &archived)
	if len(archived) != 1 || archived[0].ScheduledAt == nil {
		t.Errorf("unexpected archived list: %+v", archived)
	}
}

func TestListSearchAndOtherCities(t *testing.T) {
	env := newTestEnv(t, 20)
	env.create(t, "Maria")
	rec := env.do(t, http.MethodPost, "/appointments", AppointmentRequest{
		FullName:       "João",
		PrimaryContact: "38900000000",
		Address:        "Rua D",
		City:           "Arinos",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	var list []AppointmentResponse
	decode(t, env.do(t, http.MethodGet, "/appointments?status=waiting", nil), &list)
	if len(list) != 2 {
		t.Errorf("expected 2 waiting, got %d", len(list))
	}

	rec = env.do(t, http.MethodGet, "/appointments?status=lost", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: expected 400, got %d", rec.Code)
	}

	decode(t, env.do(t, http.MethodGet, "/appointments/search?q=mar", nil), &list)
	if len(list) != 1 || list[0].FullName != "Maria" {
		t.Errorf("unexpected search result: %+v", list)
	}

	var groups map[string][]AppointmentResponse
	decode(t, env.do(t, http.MethodGet, "/other-cities", nil), &groups)
	if len(groups["Arinos"]) != 1 || len(groups) != 1 {
		t.Errorf("unexpected groups: %+v", groups)
	}

	decode(t, env.do(t, http.MethodGet, "/agenda", nil), &list)
	if len(list) != 0 {
		t.Errorf("expected empty agenda, got %d", len(list))
	}
}

func TestOperatorHeaderReachesAuditLog(t *testing.T) {
	env := newTestEnv(t, 20)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString(
		`{"full_name":"Ana","primary_contact":"1","address":"Rua A"}`))
	req.Header.Set("X-Operator", "joana")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	events := env.repo.Events()
	if len(events) != 1 || events[0].Actor != "joana" {
		t.Errorf("expected one event by joana, got %+v", events)
	}
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{appointment.ErrValidation, http.StatusBadRequest, "validation_error"},
		{appointment.ErrNotFound, http.StatusNotFound, "appointment_not_found"},
		{appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
		{appointment.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{appointment.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
		{appointment.ErrDayBeingBooked, http.StatusConflict, "date_being_booked"},
		{fmt.Errorf("update appointment: %w", appointment.ErrConflict), http.StatusConflict, "concurrent_modification"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handleServiceError(rec, tt.err)
		if rec.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
		}
		if code := errorCode(t, rec); code != tt.code {
			t.Errorf("%v: expected %s, got %s", tt.err, tt.code, code)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, "test", "v1")

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness: expected 503, got %d", rec.Code)
	}
	var resp ReadinessResponse
	decode(t, rec, &resp)
	if resp.Dependencies["store"] != "ok" || resp.Dependencies["redis"] != "down" {
		t.Errorf("unexpected dependencies: %+v", resp.Dependencies)
	}
}
