package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"vetsched/internal/domain"
	"vetsched/internal/service/booking"
	"vetsched/internal/store"
)

type fakeBooking struct {
	book           func(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	update         func(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error)
	availableSlots func(ctx context.Context, professionalID uuid.UUID, date time.Time, step, duration int) ([]int, error)
	get            func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listDay        func(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error)
}

func (f *fakeBooking) Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
	return f.book(ctx, in)
}

func (f *fakeBooking) Update(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error) {
	return f.update(ctx, id, in)
}

func (f *fakeBooking) AvailableSlots(ctx context.Context, professionalID uuid.UUID, date time.Time, step, duration int) ([]int, error) {
	return f.availableSlots(ctx, professionalID, date, step, duration)
}

func (f *fakeBooking) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return f.get(ctx, id)
}

func (f *fakeBooking) ListDay(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return f.listDay(ctx, professionalID, date)
}

type fakeLifecycle struct {
	confirm  func(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	complete func(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	cancel   func(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error)
	noShow   func(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	history  func(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error)
}

func (f *fakeLifecycle) Confirm(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return f.confirm(ctx, id, actor)
}

func (f *fakeLifecycle) Complete(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return f.complete(ctx, id, actor)
}

func (f *fakeLifecycle) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error) {
	return f.cancel(ctx, id, actor, reason)
}

func (f *fakeLifecycle) MarkNoShow(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return f.noShow(ctx, id, actor)
}

func (f *fakeLifecycle) History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error) {
	return f.history(ctx, id)
}

func newTestHandler(b *fakeBooking, l *fakeLifecycle) (*echo.Echo, *Handler) {
	e := echo.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(b, l, log)
	h.RegisterRoutes(e.Group("/v1"))
	return e, h
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("X-Actor", "reception")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var testProfID = "11111111-1111-1111-1111-111111111111"

func sampleAppointment() domain.Appointment {
	return domain.Appointment{
		ID:              uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		ProfessionalID:  uuid.MustParse(testProfID),
		ClientID:        uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		PatientID:       uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartMinute:     540,
		DurationMinutes: 30,
		Status:          domain.StatusScheduled,
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAvailableSlotsFormatsClockTimes(t *testing.T) {
	b := &fakeBooking{
		availableSlots: func(ctx context.Context, profID uuid.UUID, date time.Time, step, duration int) ([]int, error) {
			if profID.String() != testProfID {
				t.Fatalf("professional_id = %s", profID)
			}
			if duration != 30 {
				t.Fatalf("duration = %d, want 30", duration)
			}
			return []int{540, 570, 630}, nil
		},
	}
	e, _ := newTestHandler(b, &fakeLifecycle{})

	rec := doRequest(e, http.MethodGet, "/v1/available-slots?professional_id="+testProfID+"&date=2026-03-02&duration=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var slots []slotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"09:00", "09:30", "10:30"}
	if len(slots) != len(want) {
		t.Fatalf("len(slots) = %d, want %d", len(slots), len(want))
	}
	for i, w := range want {
		if slots[i].Time != w {
			t.Fatalf("slots[%d] = %q, want %q", i, slots[i].Time, w)
		}
	}
}

func TestAvailableSlotsEmptyIsJSONArray(t *testing.T) {
	b := &fakeBooking{
		availableSlots: func(ctx context.Context, profID uuid.UUID, date time.Time, step, duration int) ([]int, error) {
			return []int{}, nil
		},
	}
	e, _ := newTestHandler(b, &fakeLifecycle{})

	rec := doRequest(e, http.MethodGet, "/v1/available-slots?professional_id="+testProfID+"&date=2026-03-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want empty array", got)
	}
}

func TestAvailableSlotsBadQuery(t *testing.T) {
	e, _ := newTestHandler(&fakeBooking{}, &fakeLifecycle{})

	cases := []string{
		"/v1/available-slots?professional_id=nope&date=2026-03-02",
		"/v1/available-slots?professional_id=" + testProfID + "&date=03-02-2026",
		"/v1/available-slots?professional_id=" + testProfID + "&date=2026-03-02&duration=abc",
	}
	for _, target := range cases {
		rec := doRequest(e, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	var gotInput booking.BookInput
	b := &fakeBooking{
		book: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
			gotInput = in
			return sampleAppointment(), nil
		},
	}
	e, _ := newTestHandler(b, &fakeLifecycle{})

	body := `{
		"professional_id": "` + testProfID + `",
		"client_id": "33333333-3333-3333-3333-333333333333",
		"pet_id": "44444444-4444-4444-4444-444444444444",
		"appointment_date": "2026-03-02",
		"appointment_time": "09:00",
		"duration_minutes": 30,
		"notes": "first visit"
	}`
	rec := doRequest(e, http.MethodPost, "/v1/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if gotInput.StartMinute != 540 {
		t.Fatalf("start minute = %d, want 540", gotInput.StartMinute)
	}
	if gotInput.Actor != "reception" {
		t.Fatalf("actor = %q, want reception", gotInput.Actor)
	}
	if gotInput.Notes != "first visit" {
		t.Fatalf("notes = %q", gotInput.Notes)
	}

	var resp appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.AppointmentTime != "09:00" || resp.AppointmentDate != "2026-03-02" {
		t.Fatalf("slot = %s %s", resp.AppointmentDate, resp.AppointmentTime)
	}
	if resp.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %q", resp.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"validation", domain.NewValidationError("bad input"), http.StatusBadRequest, "invalid_argument"},
		{"conflict", store.ErrConflict, http.StatusConflict, "conflict"},
		{"out of hours", booking.ErrOutOfHours, http.StatusUnprocessableEntity, "out_of_hours"},
		{"not configured", store.ErrNotConfigured, http.StatusUnprocessableEntity, "not_configured"},
		{"busy", store.ErrBusy, http.StatusServiceUnavailable, "busy"},
		{"terminal", domain.ErrTerminalState, http.StatusConflict, "terminal_state"},
		{"illegal transition", domain.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
		{"not found", store.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	body := `{
		"professional_id": "` + testProfID + `",
		"client_id": "33333333-3333-3333-3333-333333333333",
		"pet_id": "44444444-4444-4444-4444-444444444444",
		"appointment_date": "2026-03-02",
		"appointment_time": "09:00",
		"duration_minutes": 30
	}`

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBooking{
				book: func(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}
			e, _ := newTestHandler(b, &fakeLifecycle{})

			rec := doRequest(e, http.MethodPost, "/v1/appointments", body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", resp.Reason, tt.wantReason)
			}
		})
	}
}

func TestBusySetsRetryAfter(t *testing.T) {
	b := &fakeBooking{
		get: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrBusy
		},
	}
	e, _ := newTestHandler(b, &fakeLifecycle{})

	rec := doRequest(e, http.MethodGet, "/v1/appointments/22222222-2222-2222-2222-222222222222", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
}

func TestCancelPassesReason(t *testing.T) {
	var gotReason string
	l := &fakeLifecycle{
		cancel: func(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error) {
			gotReason = reason
			appt := sampleAppointment()
			appt.Status = domain.StatusCancelled
			appt.CancellationReason = reason
			return appt, nil
		},
	}
	e, _ := newTestHandler(&fakeBooking{}, l)

	rec := doRequest(e, http.MethodDelete, "/v1/appointments/22222222-2222-2222-2222-222222222222", `{"reason":"owner called"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotReason != "owner called" {
		t.Fatalf("reason = %q", gotReason)
	}
}

func TestCancelWithoutReason(t *testing.T) {
	l := &fakeLifecycle{
		cancel: func(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error) {
			return domain.Appointment{}, domain.NewValidationError("cancellation reason is required")
		},
	}
	e, _ := newTestHandler(&fakeBooking{}, l)

	rec := doRequest(e, http.MethodDelete, "/v1/appointments/22222222-2222-2222-2222-222222222222", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateAppointmentForwardsPartialFields(t *testing.T) {
	var gotInput booking.UpdateInput
	b := &fakeBooking{
		update: func(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error) {
			gotInput = in
			return sampleAppointment(), nil
		},
	}
	e, _ := newTestHandler(b, &fakeLifecycle{})

	rec := doRequest(e, http.MethodPut, "/v1/appointments/22222222-2222-2222-2222-222222222222", `{"appointment_time":"10:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotInput.StartMinute == nil || *gotInput.StartMinute != 630 {
		t.Fatalf("start minute = %v, want 630", gotInput.StartMinute)
	}
	if gotInput.Date != nil || gotInput.DurationMinutes != nil || gotInput.Notes != nil {
		t.Fatalf("unexpected fields set: %+v", gotInput)
	}
}

func TestConfirmTransition(t *testing.T) {
	l := &fakeLifecycle{
		confirm: func(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
			appt := sampleAppointment()
			appt.Status = domain.StatusConfirmed
			return appt, nil
		},
	}
	e, _ := newTestHandler(&fakeBooking{}, l)

	rec := doRequest(e, http.MethodPost, "/v1/appointments/22222222-2222-2222-2222-222222222222/confirm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != string(domain.StatusConfirmed) {
		t.Fatalf("status = %q", resp.Status)
	}
}

func TestAppointmentHistory(t *testing.T) {
	l := &fakeLifecycle{
		history: func(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error) {
			return []domain.HistoryEntry{
				{Seq: 1, AppointmentID: id, Action: domain.HistoryCreated, Actor: "reception", Detail: "2026-03-02 09:00-09:30"},
				{Seq: 2, AppointmentID: id, Action: domain.HistoryConfirmed, Actor: "reception"},
			}, nil
		},
	}
	e, _ := newTestHandler(&fakeBooking{}, l)

	rec := doRequest(e, http.MethodGet, "/v1/appointments/22222222-2222-2222-2222-222222222222/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var entries []historyEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Action != "created" || entries[1].Action != "confirmed" {
		t.Fatalf("actions = %s, %s", entries[0].Action, entries[1].Action)
	}
}

func TestBadAppointmentID(t *testing.T) {
	e, _ := newTestHandler(&fakeBooking{}, &fakeLifecycle{})

	rec := doRequest(e, http.MethodGet, "/v1/appointments/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
