package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vetsched/internal/domain"
)

const (
	MinDurationMinutes  = 15
	MaxDurationMinutes  = 240
	DurationStepMinutes = 15

	DefaultSlotStepMinutes = 15
)

// BookingTx is the transaction-scoped surface used inside the serialized
// booking section. Everything a single admission or transition needs happens
// through one BookingTx so the appointment mutation, its history entry and
// its outbox event commit atomically.
type BookingTx interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	FindOverlapping(ctx context.Context, professionalID uuid.UUID, date time.Time, iv domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) error
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	AppendOutbox(ctx context.Context, evt domain.OutboxEvent) error
}

type AppointmentRepository interface {
	// InDayTransaction runs fn inside a transaction holding the advisory
	// lock for each (professionalID, date) pair, acquired in a stable
	// order. Returns ErrBusy when a lock cannot be acquired in time.
	InDayTransaction(ctx context.Context, professionalID uuid.UUID, dates []time.Time, fn func(ctx context.Context, tx BookingTx) error) error

	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListDay(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error)
	History(ctx context.Context, appointmentID uuid.UUID) ([]domain.HistoryEntry, error)
}
