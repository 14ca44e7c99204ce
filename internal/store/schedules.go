package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vetsched/internal/domain"
)

// ScheduleRepository is read-only from the engine's perspective; schedule
// administration happens out of band.
type ScheduleRepository interface {
	// WorkingIntervals returns the bookable intervals for the date, with
	// that date's exceptions already subtracted. Returns ErrNotConfigured
	// when the professional has no schedule rows at all for the weekday;
	// a configured but unavailable day yields an empty slice.
	WorkingIntervals(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Interval, error)

	// DefaultDuration returns the professional's default consultation
	// length in minutes. Returns ErrNotFound for an unknown professional.
	DefaultDuration(ctx context.Context, professionalID uuid.UUID) (int, error)
}
