package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vetsched/internal/domain"
	"vetsched/internal/store"
)

// ErrOutOfHours reports a requested interval that does not lie inside any of
// the professional's working intervals for that date.
var ErrOutOfHours = errors.New("requested time is outside working hours")

func validationError(msg string) error {
	return domain.NewValidationError(msg)
}

// Service is the admission-control component: it validates a requested slot
// against the schedule and current occupancy, and reserves it under the
// per-(professional, date) lock. It also computes bookable slots.
type Service struct {
	appointments store.AppointmentRepository
	schedules    store.ScheduleRepository
	now          func() time.Time
}

func NewService(appointments store.AppointmentRepository, schedules store.ScheduleRepository) *Service {
	return &Service{
		appointments: appointments,
		schedules:    schedules,
		now:          time.Now,
	}
}

type BookInput struct {
	ProfessionalID  uuid.UUID
	ClientID        uuid.UUID
	PatientID       uuid.UUID
	SpecialtyID     *uuid.UUID
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Notes           string
	Actor           string
}

func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.ProfessionalID == uuid.Nil {
		return domain.Appointment{}, validationError("professional_id is required")
	}
	if in.ClientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if in.PatientID == uuid.Nil {
		return domain.Appointment{}, validationError("pet_id is required")
	}
	if err := validateDuration(in.DurationMinutes); err != nil {
		return domain.Appointment{}, err
	}

	date := domain.DateOf(in.Date)
	slot := domain.Interval{Start: in.StartMinute, End: in.StartMinute + in.DurationMinutes}
	if in.StartMinute < 0 || slot.End > 24*60 {
		return domain.Appointment{}, validationError("appointment does not fit within the day")
	}

	if err := s.checkWorkingHours(ctx, in.ProfessionalID, date, slot); err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err := s.appointments.InDayTransaction(ctx, in.ProfessionalID, []time.Time{date}, func(ctx context.Context, tx store.BookingTx) error {
		overlapping, err := tx.FindOverlapping(ctx, in.ProfessionalID, date, slot, uuid.Nil)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return store.ErrConflict
		}

		appt, err := tx.InsertAppointment(ctx, domain.Appointment{
			ProfessionalID:  in.ProfessionalID,
			ClientID:        in.ClientID,
			PatientID:       in.PatientID,
			SpecialtyID:     in.SpecialtyID,
			Date:            date,
			StartMinute:     in.StartMinute,
			DurationMinutes: in.DurationMinutes,
			Status:          domain.StatusScheduled,
			Notes:           in.Notes,
		})
		if err != nil {
			return err
		}

		err = tx.AppendHistory(ctx, domain.HistoryEntry{
			AppointmentID: appt.ID,
			Action:        domain.HistoryCreated,
			Actor:         actorOrUnknown(in.Actor),
			Detail:        slotText(date, slot),
		})
		if err != nil {
			return err
		}

		if err := appendEvent(ctx, tx, appt, "appointment.created", s.now()); err != nil {
			return err
		}

		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

type UpdateInput struct {
	Date            *time.Time
	StartMinute     *int
	DurationMinutes *int
	Notes           *string
	Actor           string
}

// Update dispatches a partial edit: a change to date, time or duration goes
// through the full reschedule admission path, a notes-only edit does not
// consult the lock or the overlap check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}

	current, err := s.appointments.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	newDate := current.Date
	if in.Date != nil {
		newDate = domain.DateOf(*in.Date)
	}
	newStart := current.StartMinute
	if in.StartMinute != nil {
		newStart = *in.StartMinute
	}
	newDuration := current.DurationMinutes
	if in.DurationMinutes != nil {
		newDuration = *in.DurationMinutes
	}

	scheduleChanged := !newDate.Equal(current.Date) ||
		newStart != current.StartMinute ||
		newDuration != current.DurationMinutes
	if scheduleChanged {
		return s.Reschedule(ctx, id, RescheduleInput{
			Date:            newDate,
			StartMinute:     newStart,
			DurationMinutes: newDuration,
			Notes:           in.Notes,
			Actor:           in.Actor,
		})
	}

	if in.Notes == nil {
		return domain.Appointment{}, validationError("nothing to update")
	}
	return s.editNotes(ctx, current, *in.Notes, in.Actor)
}

type RescheduleInput struct {
	Date            time.Time
	StartMinute     int
	DurationMinutes int
	Notes           *string
	Actor           string
}

// Reschedule moves an appointment to a new slot, re-running the booking
// admission checks against the new slot with the moving appointment excluded
// from the overlap query. Both the old and new day are locked.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (domain.Appointment, error) {
	if err := validateDuration(in.DurationMinutes); err != nil {
		return domain.Appointment{}, err
	}

	newDate := domain.DateOf(in.Date)
	slot := domain.Interval{Start: in.StartMinute, End: in.StartMinute + in.DurationMinutes}
	if in.StartMinute < 0 || slot.End > 24*60 {
		return domain.Appointment{}, validationError("appointment does not fit within the day")
	}

	current, err := s.appointments.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	if err := s.checkWorkingHours(ctx, current.ProfessionalID, newDate, slot); err != nil {
		return domain.Appointment{}, err
	}

	lockedOldDate := current.Date
	var out domain.Appointment
	err = s.appointments.InDayTransaction(ctx, current.ProfessionalID, []time.Time{lockedOldDate, newDate}, func(ctx context.Context, tx store.BookingTx) error {
		fresh, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		// The appointment moved days between the read and the lock; the
		// lock set no longer covers its current day.
		if !domain.DateOf(fresh.Date).Equal(domain.DateOf(lockedOldDate)) {
			return store.ErrBusy
		}
		if fresh.Status.Terminal() {
			return domain.ErrTerminalState
		}

		overlapping, err := tx.FindOverlapping(ctx, fresh.ProfessionalID, newDate, slot, fresh.ID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return store.ErrConflict
		}

		prior := slotText(fresh.Date, fresh.Interval())
		fresh.Date = newDate
		fresh.StartMinute = in.StartMinute
		fresh.DurationMinutes = in.DurationMinutes
		if in.Notes != nil {
			fresh.Notes = *in.Notes
		}

		if err := tx.UpdateAppointment(ctx, fresh); err != nil {
			return err
		}

		err = tx.AppendHistory(ctx, domain.HistoryEntry{
			AppointmentID: fresh.ID,
			Action:        domain.HistoryRescheduled,
			Actor:         actorOrUnknown(in.Actor),
			Detail:        fmt.Sprintf("from %s to %s", prior, slotText(newDate, slot)),
		})
		if err != nil {
			return err
		}

		if err := appendEvent(ctx, tx, fresh, "appointment.rescheduled", s.now()); err != nil {
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

func (s *Service) editNotes(ctx context.Context, current domain.Appointment, notes, actor string) (domain.Appointment, error) {
	var out domain.Appointment
	// Empty date set: a plain transaction with no advisory locks.
	err := s.appointments.InDayTransaction(ctx, current.ProfessionalID, nil, func(ctx context.Context, tx store.BookingTx) error {
		fresh, err := tx.GetAppointment(ctx, current.ID)
		if err != nil {
			return err
		}

		fresh.Notes = notes
		if err := tx.UpdateAppointment(ctx, fresh); err != nil {
			return err
		}

		err = tx.AppendHistory(ctx, domain.HistoryEntry{
			AppointmentID: fresh.ID,
			Action:        domain.HistoryEdited,
			Actor:         actorOrUnknown(actor),
			Detail:        "notes updated",
		})
		if err != nil {
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

// AvailableSlots computes bookable start minutes for the professional on the
// given date. A zero stepMinutes falls back to the default step; a zero
// durationMinutes falls back to the professional's default consultation
// length. Results are chronological and never in the past.
func (s *Service) AvailableSlots(ctx context.Context, professionalID uuid.UUID, date time.Time, stepMinutes, durationMinutes int) ([]int, error) {
	if professionalID == uuid.Nil {
		return nil, validationError("professional_id is required")
	}
	if stepMinutes <= 0 {
		stepMinutes = store.DefaultSlotStepMinutes
	}
	if durationMinutes == 0 {
		d, err := s.schedules.DefaultDuration(ctx, professionalID)
		if err != nil {
			return nil, err
		}
		durationMinutes = d
	}
	if err := validateDuration(durationMinutes); err != nil {
		return nil, err
	}

	date = domain.DateOf(date)
	now := s.now().UTC()
	today := domain.DateOf(now)
	if date.Before(today) {
		return []int{}, nil
	}

	working, err := s.schedules.WorkingIntervals(ctx, professionalID, date)
	if err != nil {
		return nil, err
	}

	booked, err := s.appointments.ListDay(ctx, professionalID, date)
	if err != nil {
		return nil, err
	}
	busy := make([]domain.Interval, 0, len(booked))
	for _, a := range booked {
		if a.Status.Blocks() {
			busy = append(busy, a.Interval())
		}
	}

	notBefore := 0
	if date.Equal(today) {
		notBefore = domain.MinuteOf(now)
		if now.Second() > 0 || now.Nanosecond() > 0 {
			notBefore++
		}
	}

	slots := domain.AvailableSlots(working, busy, stepMinutes, durationMinutes, notBefore)
	if slots == nil {
		slots = []int{}
	}
	return slots, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	return s.appointments.Get(ctx, id)
}

func (s *Service) ListDay(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	if professionalID == uuid.Nil {
		return nil, validationError("professional_id is required")
	}
	return s.appointments.ListDay(ctx, professionalID, date)
}

func (s *Service) checkWorkingHours(ctx context.Context, professionalID uuid.UUID, date time.Time, slot domain.Interval) error {
	working, err := s.schedules.WorkingIntervals(ctx, professionalID, date)
	if err != nil {
		return err
	}
	for _, w := range working {
		if w.Contains(slot) {
			return nil
		}
	}
	return ErrOutOfHours
}

func validateDuration(minutes int) error {
	if minutes < store.MinDurationMinutes || minutes > store.MaxDurationMinutes {
		return validationError(fmt.Sprintf("duration_minutes must be between %d and %d", store.MinDurationMinutes, store.MaxDurationMinutes))
	}
	if minutes%store.DurationStepMinutes != 0 {
		return validationError(fmt.Sprintf("duration_minutes must be a multiple of %d", store.DurationStepMinutes))
	}
	return nil
}

func actorOrUnknown(actor string) string {
	if actor == "" {
		return "unknown"
	}
	return actor
}

func slotText(date time.Time, iv domain.Interval) string {
	return fmt.Sprintf("%s %s-%s",
		domain.DateOf(date).Format("2006-01-02"),
		domain.FormatClock(iv.Start),
		domain.FormatClock(iv.End),
	)
}

type eventPayload struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Status         string    `json:"status"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func appendEvent(ctx context.Context, tx store.BookingTx, appt domain.Appointment, eventType string, at time.Time) error {
	payload, err := json.Marshal(eventPayload{
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		Status:         string(appt.Status),
		Date:           domain.DateOf(appt.Date).Format("2006-01-02"),
		StartTime:      domain.FormatClock(appt.StartMinute),
		OccurredAt:     at.UTC(),
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
