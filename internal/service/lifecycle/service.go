package lifecycle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"vetsched/internal/domain"
	"vetsched/internal/store"
)

func validationError(msg string) error {
	return domain.NewValidationError(msg)
}

// Service enforces the appointment status state machine. Every successful
// transition mutates the row, stamps its timestamp and appends exactly one
// history entry inside one transaction under the appointment's day lock.
type Service struct {
	appointments store.AppointmentRepository
	now          func() time.Time
}

func NewService(appointments store.AppointmentRepository) *Service {
	return &Service{
		appointments: appointments,
		now:          time.Now,
	}
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusConfirmed, actor, "")
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusCompleted, actor, "")
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor, reason string) (domain.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Appointment{}, validationError("cancellation reason is required")
	}
	return s.transition(ctx, id, domain.StatusCancelled, actor, reason)
}

// MarkNoShow is the transition contract for the no-show trigger; whether it
// is called manually or by a sweep past the appointment time is the
// caller's policy.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actor string) (domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusNoShow, actor, "")
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error) {
	if id == uuid.Nil {
		return nil, validationError("appointment id is required")
	}
	if _, err := s.appointments.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.appointments.History(ctx, id)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus, actor, detail string) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}

	current, err := s.appointments.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = s.appointments.InDayTransaction(ctx, current.ProfessionalID, []time.Time{current.Date}, func(ctx context.Context, tx store.BookingTx) error {
		fresh, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}

		if err := fresh.Transition(to, s.now()); err != nil {
			return err
		}
		if to == domain.StatusCancelled {
			fresh.CancellationReason = detail
		}

		if err := tx.UpdateAppointment(ctx, fresh); err != nil {
			return err
		}

		actorName := actor
		if actorName == "" {
			actorName = "unknown"
		}
		err = tx.AppendHistory(ctx, domain.HistoryEntry{
			AppointmentID: fresh.ID,
			Action:        domain.HistoryActionFor(to),
			Actor:         actorName,
			Detail:        detail,
		})
		if err != nil {
			return err
		}

		if err := s.appendEvent(ctx, tx, fresh, "appointment."+string(to)); err != nil {
			return err
		}

		out = fresh
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

type eventPayload struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Status         string    `json:"status"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (s *Service) appendEvent(ctx context.Context, tx store.BookingTx, appt domain.Appointment, eventType string) error {
	payload, err := json.Marshal(eventPayload{
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		Status:         string(appt.Status),
		Date:           domain.DateOf(appt.Date).Format("2006-01-02"),
		StartTime:      domain.FormatClock(appt.StartMinute),
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, domain.OutboxEvent{
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		EventType:      eventType,
		Payload:        payload,
	})
}
