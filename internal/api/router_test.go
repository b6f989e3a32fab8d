package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/booking"
	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, checkers map[string]Checker) *testServer {
	t.Helper()
	log := zerolog.Nop()
	tokens := auth.NewTokens("test-secret-0123456789", time.Hour)

	windowsDB := availability.NewMemoryRepository()
	availSvc := availability.NewService(windowsDB, log)
	bookingSvc := booking.NewService(windowsDB, schedule.NewMemoryRepository(), lock.NewMemoryLocker(), log)
	userSvc := user.NewService(user.NewMemoryRepository(), tokens, availSvc, log)

	return &testServer{t: t, handler: NewRouter(RouterConfig{
		Users:        userSvc,
		Availability: availSvc,
		Booking:      bookingSvc,
		Tokens:       tokens,
		Checkers:     checkers,
		Logger:       log,
		Env:          "test",
		Version:      "test",
	})}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Envelope[T] {
	t.Helper()
	var env Envelope[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// signUp registers a user and returns its id and a token.
func (s *testServer) signUp(name, email, typ string) (string, string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/new", "", RegisterRequest{Name: name, Email: email, Password: "secret1", Type: typ})
	expectStatus(s.t, rec, http.StatusCreated)

	rec = s.do(http.MethodPost, "/auth", "", AuthRequest{Email: email, Password: "secret1"})
	expectStatus(s.t, rec, http.StatusOK)
	env := decode[AuthResponse](s.t, rec)
	return env.Data.User.ID, env.Data.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, map[string]Checker{
		"postgres": func(context.Context) error { return nil },
	})
	expectStatus(t, srv.do(http.MethodGet, "/health/live", "", nil), http.StatusOK)

	rec := srv.do(http.MethodGet, "/health/ready", "", nil)
	expectStatus(t, rec, http.StatusOK)

	down := newTestServer(t, map[string]Checker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	})
	rec = down.do(http.MethodGet, "/health/ready", "", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	var body ReadinessResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Dependencies["redis"] != "down" || body.Dependencies["postgres"] != "ok" {
		t.Fatalf("unexpected dependencies %+v", body.Dependencies)
	}
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	id, token := srv.signUp("Ana", "ana@example.com", "")

	rec := srv.do(http.MethodGet, "/users/me", token, nil)
	expectStatus(t, rec, http.StatusOK)
	me := decode[UserResponse](t, rec)
	if !me.Success || me.Data.ID != id || me.Data.Type != auth.RolePatient {
		t.Fatalf("unexpected me %+v", me)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("password hash must not be exposed")
	}

	rec = srv.do(http.MethodPost, "/auth/new", "", RegisterRequest{Name: "Ana", Email: "ANA@example.com", Password: "secret1"})
	expectStatus(t, rec, http.StatusConflict)

	rec = srv.do(http.MethodPost, "/auth/new", "", RegisterRequest{Name: "Bo", Email: "bo@example.com", Password: "123"})
	expectStatus(t, rec, http.StatusBadRequest)
	env := decode[any](t, rec)
	if env.Success || env.Error != "validation_error" {
		t.Fatalf("unexpected error envelope %+v", env)
	}

	// bcrypt limits are in bytes: 40 two-byte runes pass the tag and still fail.
	for _, pw := range []string{strings.Repeat("a", 80), strings.Repeat("é", 40)} {
		rec = srv.do(http.MethodPost, "/auth/new", "", RegisterRequest{Name: "Cy", Email: "cy@example.com", Password: pw})
		expectStatus(t, rec, http.StatusBadRequest)
	}

	expectStatus(t, srv.do(http.MethodPost, "/auth", "", AuthRequest{Email: "ana@example.com", Password: "wrong!"}), http.StatusUnauthorized)
	expectStatus(t, srv.do(http.MethodGet, "/users/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, srv.do(http.MethodGet, "/users/me", "garbage", nil), http.StatusUnauthorized)
}

func TestBookingFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	doctorID, doctorToken := srv.signUp("Dr One", "d1@example.com", "DOCTOR")
	_, patientToken := srv.signUp("Pat", "p1@example.com", "PATIENT")
	_, otherToken := srv.signUp("Other", "p2@example.com", "PATIENT")

	// Patients cannot publish availability.
	expectStatus(t, srv.do(http.MethodPost, "/availability", patientToken, CreateAvailabilityRequest{
		Date: "2025-08-22", StartTime: "08:00", EndTime: "10:00",
	}), http.StatusForbidden)

	rec := srv.do(http.MethodPost, "/availability", doctorToken, CreateAvailabilityRequest{
		Date: "2025-08-22", StartTime: "08:00", EndTime: "10:00", SlotMinutes: 30,
	})
	expectStatus(t, rec, http.StatusCreated)
	win := decode[WindowResponse](t, rec).Data
	if len(win.Slots) != 4 || win.Slots[1].Time.String() != "08:30" || !win.Slots[1].Available {
		t.Fatalf("unexpected window %+v", win)
	}

	rec = srv.do(http.MethodGet, "/users/doctors", patientToken, nil)
	expectStatus(t, rec, http.StatusOK)
	doctors := decode[[]DoctorResponse](t, rec).Data
	if len(doctors) != 1 || doctors[0].ID != doctorID || doctors[0].AvailabilityCount != 1 {
		t.Fatalf("unexpected doctors %+v", doctors)
	}

	rec = srv.do(http.MethodPost, "/schedules", patientToken, CreateScheduleRequest{
		DoctorID: doctorID, Date: "2025-08-22", SlotTime: "08:30", Notes: "checkup",
	})
	expectStatus(t, rec, http.StatusCreated)
	sched := decode[ScheduleResponse](t, rec).Data
	if sched.Status != schedule.StatusScheduled || sched.SlotTime.String() != "08:30" {
		t.Fatalf("unexpected schedule %+v", sched)
	}

	rec = srv.do(http.MethodGet, "/availability/doctor/"+doctorID+"?date=2025-08-22", patientToken, nil)
	expectStatus(t, rec, http.StatusOK)
	windows := decode[[]WindowResponse](t, rec).Data
	if len(windows) != 1 || windows[0].Slots[1].Available {
		t.Fatalf("slot 08:30 should be shown as booked: %+v", windows)
	}

	rec = srv.do(http.MethodPost, "/schedules", otherToken, CreateScheduleRequest{
		DoctorID: doctorID, Date: "2025-08-22", SlotTime: "08:30",
	})
	expectStatus(t, rec, http.StatusConflict)
	if env := decode[any](t, rec); env.Error != "slot_unavailable" {
		t.Fatalf("expected slot_unavailable, got %q", env.Error)
	}

	rec = srv.do(http.MethodPost, "/schedules", otherToken, CreateScheduleRequest{
		DoctorID: doctorID, Date: "2025-08-23", SlotTime: "08:30",
	})
	expectStatus(t, rec, http.StatusNotFound)

	rec = srv.do(http.MethodGet, "/availability/slots?doctorId="+doctorID+"&date=2025-08-22", otherToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if free := decode[[]FreeSlotResponse](t, rec).Data; len(free) != 3 {
		t.Fatalf("expected 3 free slots, got %+v", free)
	}

	expectStatus(t, srv.do(http.MethodGet, "/schedules/"+sched.ID, otherToken, nil), http.StatusNotFound)
	expectStatus(t, srv.do(http.MethodGet, "/schedules/"+sched.ID, doctorToken, nil), http.StatusOK)

	rec = srv.do(http.MethodGet, "/schedules/my", doctorToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if mine := decode[[]ScheduleResponse](t, rec).Data; len(mine) != 1 || mine[0].ID != sched.ID {
		t.Fatalf("unexpected doctor schedules %+v", mine)
	}

	// Booked slots block deleting the window.
	expectStatus(t, srv.do(http.MethodDelete, "/availability/"+win.ID, doctorToken, nil), http.StatusConflict)

	// Completing is gated to doctors.
	expectStatus(t, srv.do(http.MethodPut, "/schedules/"+sched.ID+"/complete", patientToken, nil), http.StatusForbidden)

	rec = srv.do(http.MethodPut, "/schedules/"+sched.ID+"/cancel", patientToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[ScheduleResponse](t, rec).Data; got.Status != schedule.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}

	rec = srv.do(http.MethodPut, "/schedules/"+sched.ID+"/complete", doctorToken, nil)
	expectStatus(t, rec, http.StatusConflict)
	if env := decode[any](t, rec); env.Error != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", env.Error)
	}

	rec = srv.do(http.MethodDelete, "/availability/"+win.ID, doctorToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if ok := decode[bool](t, rec).Data; !ok {
		t.Fatalf("delete should return true")
	}
}

func TestUpdateAvailability(t *testing.T) {
	srv := newTestServer(t, nil)
	_, doctorToken := srv.signUp("Dr One", "d1@example.com", "DOCTOR")
	_, otherDoctor := srv.signUp("Dr Two", "d2@example.com", "DOCTOR")

	rec := srv.do(http.MethodPost, "/availability", doctorToken, CreateAvailabilityRequest{
		Date: "2025-08-22", StartTime: "08:00", EndTime: "10:00",
	})
	expectStatus(t, rec, http.StatusCreated)
	win := decode[WindowResponse](t, rec).Data

	end := "11:00"
	rec = srv.do(http.MethodPut, "/availability/"+win.ID, doctorToken, UpdateAvailabilityRequest{EndTime: &end})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[WindowResponse](t, rec).Data; len(updated.Slots) != 6 || updated.EndTime.String() != "11:00" {
		t.Fatalf("unexpected update %+v", updated)
	}

	expectStatus(t, srv.do(http.MethodPut, "/availability/"+win.ID, otherDoctor, UpdateAvailabilityRequest{EndTime: &end}), http.StatusNotFound)

	bad := 1
	expectStatus(t, srv.do(http.MethodPut, "/availability/"+win.ID, doctorToken, UpdateAvailabilityRequest{SlotMinutes: &bad}), http.StatusBadRequest)

	rec = srv.do(http.MethodGet, "/availability/my", doctorToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if mine := decode[[]WindowResponse](t, rec).Data; len(mine) != 1 {
		t.Fatalf("expected one window, got %d", len(mine))
	}
}

func TestRateLimit(t *testing.T) {
	log := zerolog.Nop()
	tokens := auth.NewTokens("test-secret-0123456789", time.Hour)
	h := NewRouter(RouterConfig{
		Tokens:       tokens,
		Logger:       log,
		RateLimitRPS: 1,
		RateBurst:    2,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other clients should not be limited, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{availability.ErrNoWindowForDate, http.StatusNotFound},
		{availability.ErrSlotNotFree, http.StatusConflict},
		{availability.ErrWindowOverlap, http.StatusConflict},
		{booking.ErrScheduleFinal, http.StatusConflict},
		{booking.ErrOwnSlot, http.StatusBadRequest},
		{user.ErrInvalidCredentials, http.StatusUnauthorized},
		{availability.ErrDoctorOnly, http.StatusForbidden},
		{schedule.ErrScheduleNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
