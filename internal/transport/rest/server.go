package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewServer assembles the echo instance: panic recovery, request IDs, a
// per-request timeout and the versioned API routes. ready is consulted by
// the health endpoint; nil means always healthy.
func NewServer(h *Handler, log *slog.Logger, requestTimeout time.Duration, ready func(ctx context.Context) error) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if requestTimeout > 0 {
		e.Use(middleware.ContextTimeout(requestTimeout))
	}

	e.GET("/healthz", func(c echo.Context) error {
		if ready != nil {
			if err := ready(c.Request().Context()); err != nil {
				log.Warn("health check failed", slog.Any("err", err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.RegisterRoutes(e.Group("/v1"))
	return e
}
