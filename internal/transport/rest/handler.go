package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"vetsched/internal/domain"
	"vetsched/internal/service/booking"
)

type bookingService interface {
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (domain.Appointment, error)
	AvailableSlots(ctx context.Context, professionalID uuid.UUID, date time.Time, stepMinutes, durationMinutes int) ([]int, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListDay(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error)
}

type lifecycleService interface {
	Confirm(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)
	History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error)
}

type Handler struct {
	booking   bookingService
	lifecycle lifecycleService
	log       *slog.Logger
}

func NewHandler(bookingSvc bookingService, lifecycleSvc lifecycleService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		booking:   bookingSvc,
		lifecycle: lifecycleSvc,
		log:       log.With(slog.String("component", "rest")),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/available-slots", h.AvailableSlots)
	g.GET("/appointments", h.ListAppointments)
	g.POST("/appointments", h.CreateAppointment)
	g.GET("/appointments/:id", h.GetAppointment)
	g.PUT("/appointments/:id", h.UpdateAppointment)
	g.DELETE("/appointments/:id", h.CancelAppointment)
	g.POST("/appointments/:id/confirm", h.ConfirmAppointment)
	g.POST("/appointments/:id/complete", h.CompleteAppointment)
	g.POST("/appointments/:id/no-show", h.NoShowAppointment)
	g.GET("/appointments/:id/history", h.AppointmentHistory)
}

type slotResponse struct {
	Time string `json:"time"`
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	log := h.log.With(slog.String("handler", "AvailableSlots"))

	professionalID, err := uuid.Parse(c.QueryParam("professional_id"))
	if err != nil {
		return h.badRequest(c, log, "professional_id must be a UUID")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return h.badRequest(c, log, "date must be in YYYY-MM-DD format")
	}

	duration := 0
	if raw := c.QueryParam("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			return h.badRequest(c, log, "duration must be an integer")
		}
	}
	step := 0
	if raw := c.QueryParam("step"); raw != "" {
		step, err = strconv.Atoi(raw)
		if err != nil {
			return h.badRequest(c, log, "step must be an integer")
		}
	}

	slots, err := h.booking.AvailableSlots(c.Request().Context(), professionalID, date, step, duration)
	if err != nil {
		return h.writeError(c, log, err, slog.String("professional_id", professionalID.String()))
	}

	out := make([]slotResponse, 0, len(slots))
	for _, minute := range slots {
		out = append(out, slotResponse{Time: domain.FormatClock(minute)})
	}

	log.Debug(
		"slots listed",
		slog.String("professional_id", professionalID.String()),
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("count", len(out)),
	)
	return c.JSON(http.StatusOK, out)
}

type createAppointmentRequest struct {
	ProfessionalID  string `json:"professional_id"`
	ClientID        string `json:"client_id"`
	PetID           string `json:"pet_id"`
	SpecialtyID     string `json:"specialty_id,omitempty"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	log := h.log.With(slog.String("handler", "CreateAppointment"))

	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, log, "invalid json body")
	}

	professionalID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		return h.badRequest(c, log, "professional_id must be a UUID")
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return h.badRequest(c, log, "client_id must be a UUID")
	}
	petID, err := uuid.Parse(req.PetID)
	if err != nil {
		return h.badRequest(c, log, "pet_id must be a UUID")
	}
	var specialtyID *uuid.UUID
	if req.SpecialtyID != "" {
		id, err := uuid.Parse(req.SpecialtyID)
		if err != nil {
			return h.badRequest(c, log, "specialty_id must be a UUID")
		}
		specialtyID = &id
	}
	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		return h.badRequest(c, log, "appointment_date must be in YYYY-MM-DD format")
	}
	startMinute, err := domain.ParseClock(req.AppointmentTime)
	if err != nil {
		return h.badRequest(c, log, "appointment_time must be in HH:MM format")
	}

	appt, err := h.booking.Book(c.Request().Context(), booking.BookInput{
		ProfessionalID:  professionalID,
		ClientID:        clientID,
		PatientID:       petID,
		SpecialtyID:     specialtyID,
		Date:            date,
		StartMinute:     startMinute,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Actor:           actor(c),
	})
	if err != nil {
		return h.writeError(c, log, err, slog.String("professional_id", professionalID.String()))
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("professional_id", appt.ProfessionalID.String()),
		slog.String("date", appt.Date.Format("2006-01-02")),
		slog.String("start", domain.FormatClock(appt.StartMinute)),
	)
	return c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

type updateAppointmentRequest struct {
	AppointmentDate *string `json:"appointment_date,omitempty"`
	AppointmentTime *string `json:"appointment_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	log := h.log.With(slog.String("handler", "UpdateAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.badRequest(c, log, "appointment id must be a UUID")
	}

	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, log, "invalid json body")
	}

	in := booking.UpdateInput{Notes: req.Notes, Actor: actor(c)}
	if req.AppointmentDate != nil {
		date, err := time.Parse("2006-01-02", *req.AppointmentDate)
		if err != nil {
			return h.badRequest(c, log, "appointment_date must be in YYYY-MM-DD format")
		}
		in.Date = &date
	}
	if req.AppointmentTime != nil {
		startMinute, err := domain.ParseClock(*req.AppointmentTime)
		if err != nil {
			return h.badRequest(c, log, "appointment_time must be in HH:MM format")
		}
		in.StartMinute = &startMinute
	}
	in.DurationMinutes = req.DurationMinutes

	appt, err := h.booking.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.writeError(c, log, err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment updated", slog.String("appointment_id", appt.ID.String()))
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	log := h.log.With(slog.String("handler", "GetAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.badRequest(c, log, "appointment id must be a UUID")
	}

	appt, err := h.booking.Get(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, log, err, slog.String("appointment_id", id.String()))
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	log := h.log.With(slog.String("handler", "ListAppointments"))

	professionalID, err := uuid.Parse(c.QueryParam("professional_id"))
	if err != nil {
		return h.badRequest(c, log, "professional_id must be a UUID")
	}
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return h.badRequest(c, log, "date must be in YYYY-MM-DD format")
	}

	appts, err := h.booking.ListDay(c.Request().Context(), professionalID, date)
	if err != nil {
		return h.writeError(c, log, err, slog.String("professional_id", professionalID.String()))
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return c.JSON(http.StatusOK, out)
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	log := h.log.With(slog.String("handler", "CancelAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.badRequest(c, log, "appointment id must be a UUID")
	}

	var req cancelAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, log, "invalid json body")
	}

	appt, err := h.lifecycle.Cancel(c.Request().Context(), id, actor(c), req.Reason)
	if err != nil {
		return h.writeError(c, log, err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()))
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) ConfirmAppointment(c echo.Context) error {
	return h.transition(c, "ConfirmAppointment", h.lifecycle.Confirm)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	return h.transition(c, "CompleteAppointment", h.lifecycle.Complete)
}

func (h *Handler) NoShowAppointment(c echo.Context) error {
	return h.transition(c, "NoShowAppointment", h.lifecycle.MarkNoShow)
}

func (h *Handler) transition(c echo.Context, name string, fn func(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error)) error {
	log := h.log.With(slog.String("handler", name))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.badRequest(c, log, "appointment id must be a UUID")
	}

	appt, err := fn(c.Request().Context(), id, actor(c))
	if err != nil {
		return h.writeError(c, log, err, slog.String("appointment_id", id.String()))
	}

	log.Info(
		"appointment transitioned",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

type historyEntryResponse struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) AppointmentHistory(c echo.Context) error {
	log := h.log.With(slog.String("handler", "AppointmentHistory"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.badRequest(c, log, "appointment id must be a UUID")
	}

	entries, err := h.lifecycle.History(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, log, err, slog.String("appointment_id", id.String()))
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			Action:    string(e.Action),
			Actor:     e.Actor,
			Detail:    e.Detail,
			Timestamp: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

type appointmentResponse struct {
	ID                 string     `json:"id"`
	ProfessionalID     string     `json:"professional_id"`
	ClientID           string     `json:"client_id"`
	PetID              string     `json:"pet_id"`
	SpecialtyID        string     `json:"specialty_id,omitempty"`
	AppointmentDate    string     `json:"appointment_date"`
	AppointmentTime    string     `json:"appointment_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	NoShowAt           *time.Time `json:"no_show_at,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:                 a.ID.String(),
		ProfessionalID:     a.ProfessionalID.String(),
		ClientID:           a.ClientID.String(),
		PetID:              a.PatientID.String(),
		AppointmentDate:    domain.DateOf(a.Date).Format("2006-01-02"),
		AppointmentTime:    domain.FormatClock(a.StartMinute),
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		ConfirmedAt:        a.ConfirmedAt,
		CompletedAt:        a.CompletedAt,
		CancelledAt:        a.CancelledAt,
		NoShowAt:           a.NoShowAt,
	}
	if a.SpecialtyID != nil {
		resp.SpecialtyID = a.SpecialtyID.String()
	}
	return resp
}

func actor(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get("X-Actor"))
}
