package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"vetsched/internal/domain"
	"vetsched/internal/service/booking"
	"vetsched/internal/store"
)

type errorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (h *Handler) badRequest(c echo.Context, log *slog.Logger, msg string) error {
	log.Warn("invalid request", slog.String("reason", msg))
	return c.JSON(http.StatusBadRequest, errorResponse{Reason: "invalid_argument", Message: msg})
}

// writeError maps engine failures to HTTP statuses with a machine-readable
// reason, so the caller can distinguish a conflicting slot from an
// out-of-hours one and retry accordingly.
func (h *Handler) writeError(c echo.Context, log *slog.Logger, err error, args ...any) error {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, args...)...)
		return c.JSON(http.StatusBadRequest, errorResponse{Reason: "invalid_argument", Message: vErr.Error()})

	case errors.Is(err, store.ErrConflict):
		log.Info("slot conflict", args...)
		return c.JSON(http.StatusConflict, errorResponse{
			Reason:  "conflict",
			Message: "The requested slot overlaps an existing appointment. Pick a different slot.",
		})

	case errors.Is(err, booking.ErrOutOfHours):
		log.Info("out of hours", args...)
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Reason:  "out_of_hours",
			Message: "The requested time is outside the professional's working hours.",
		})

	case errors.Is(err, store.ErrNotConfigured):
		log.Info("schedule not configured", args...)
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Reason:  "not_configured",
			Message: "The professional has no schedule configured for that weekday.",
		})

	case errors.Is(err, store.ErrBusy):
		log.Info("calendar busy", args...)
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			Reason:  "busy",
			Message: "The calendar is busy. Retry shortly.",
		})

	case errors.Is(err, domain.ErrTerminalState):
		log.Info("terminal state", args...)
		return c.JSON(http.StatusConflict, errorResponse{
			Reason:  "terminal_state",
			Message: "The appointment is in a terminal state and cannot change.",
		})

	case errors.Is(err, domain.ErrIllegalTransition):
		log.Info("illegal transition", args...)
		return c.JSON(http.StatusConflict, errorResponse{
			Reason:  "illegal_transition",
			Message: "The requested status change is not allowed from the current status.",
		})

	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", args...)
		return c.JSON(http.StatusNotFound, errorResponse{Reason: "not_found", Message: "appointment not found"})

	default:
		log.Error("request failed", append([]any{slog.Any("err", err)}, args...)...)
		return c.JSON(http.StatusInternalServerError, errorResponse{Reason: "internal", Message: "internal error"})
	}
}
