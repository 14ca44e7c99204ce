package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

var (
	ErrTerminalState     = errors.New("appointment is in a terminal state")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// transitions is the single source of truth for lifecycle legality.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

func (s AppointmentStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s AppointmentStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Blocks reports whether an appointment in this status occupies its slot
// for overlap purposes. Completed, cancelled and no-show never conflict.
func (s AppointmentStatus) Blocks() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                 uuid.UUID         `bun:"id,pk,type:uuid"`
	ProfessionalID     uuid.UUID         `bun:"professional_id,notnull,type:uuid"`
	ClientID           uuid.UUID         `bun:"client_id,notnull,type:uuid"`
	PatientID          uuid.UUID         `bun:"patient_id,notnull,type:uuid"`
	SpecialtyID        *uuid.UUID        `bun:"specialty_id,type:uuid"`
	Date               time.Time         `bun:"appointment_date,notnull,type:date"`
	StartMinute        int               `bun:"start_minute,notnull"`
	DurationMinutes    int               `bun:"duration_minutes,notnull"`
	Status             AppointmentStatus `bun:"status,notnull"`
	Notes              string            `bun:"notes"`
	CancellationReason string            `bun:"cancellation_reason"`
	CreatedAt          time.Time         `bun:"created_at,notnull"`
	UpdatedAt          time.Time         `bun:"updated_at,notnull"`
	ConfirmedAt        *time.Time        `bun:"confirmed_at"`
	CompletedAt        *time.Time        `bun:"completed_at"`
	CancelledAt        *time.Time        `bun:"cancelled_at"`
	NoShowAt           *time.Time        `bun:"no_show_at"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a *Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartMinute, End: a.EndMinute()}
}

// Transition moves the appointment to a new status, stamping the matching
// timestamp exactly once. The record is unchanged on error.
func (a *Appointment) Transition(to AppointmentStatus, at time.Time) error {
	if a.Status.Terminal() {
		return ErrTerminalState
	}
	if !a.Status.CanTransitionTo(to) {
		return ErrIllegalTransition
	}

	at = at.UTC()
	a.Status = to
	switch to {
	case StatusConfirmed:
		if a.ConfirmedAt == nil {
			a.ConfirmedAt = &at
		}
	case StatusCompleted:
		if a.CompletedAt == nil {
			a.CompletedAt = &at
		}
	case StatusCancelled:
		if a.CancelledAt == nil {
			a.CancelledAt = &at
		}
	case StatusNoShow:
		if a.NoShowAt == nil {
			a.NoShowAt = &at
		}
	}
	return nil
}
