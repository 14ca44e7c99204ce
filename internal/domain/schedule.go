package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Schedule is one weekly availability row: a professional is bookable on
// Weekday between StartMinute and EndMinute. Weekday follows time.Weekday
// numbering (0 = Sunday).
type Schedule struct {
	bun.BaseModel `bun:"table:schedules"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	ProfessionalID uuid.UUID `bun:"professional_id,notnull,type:uuid"`
	Weekday        int       `bun:"weekday,notnull"`
	StartMinute    int       `bun:"start_minute,notnull"`
	EndMinute      int       `bun:"end_minute,notnull"`
	IsAvailable    bool      `bun:"is_available,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

func (s *Schedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// ScheduleException blocks time on one specific date. A nil StartMinute
// blocks the whole day; otherwise [StartMinute, EndMinute) is subtracted
// from the weekly pattern.
type ScheduleException struct {
	bun.BaseModel `bun:"table:schedule_exceptions"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	ProfessionalID uuid.UUID `bun:"professional_id,notnull,type:uuid"`
	Date           time.Time `bun:"exception_date,notnull,type:date"`
	StartMinute    *int      `bun:"start_minute"`
	EndMinute      *int      `bun:"end_minute"`
	Reason         string    `bun:"reason"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func (e *ScheduleException) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (e *ScheduleException) FullDay() bool {
	return e.StartMinute == nil || e.EndMinute == nil
}

type Professional struct {
	bun.BaseModel `bun:"table:professionals"`

	ID                     uuid.UUID `bun:"id,pk,type:uuid"`
	Name                   string    `bun:"name,notnull"`
	DefaultDurationMinutes int       `bun:"default_duration_minutes,notnull"`
	CreatedAt              time.Time `bun:"created_at,notnull"`
	UpdatedAt              time.Time `bun:"updated_at,notnull"`
}

// WorkingIntervals derives the bookable intervals for one date from that
// weekday's schedule rows and the date's exceptions. Rows flagged
// unavailable contribute nothing; a full-day exception empties the result.
// The caller is responsible for distinguishing "no rows at all" from
// "configured but unavailable".
func WorkingIntervals(weekly []Schedule, exceptions []ScheduleException) []Interval {
	base := make([]Interval, 0, len(weekly))
	for _, s := range weekly {
		if !s.IsAvailable {
			continue
		}
		iv := Interval{Start: s.StartMinute, End: s.EndMinute}
		if iv.Empty() {
			continue
		}
		base = append(base, iv)
	}

	blocked := make([]Interval, 0, len(exceptions))
	for _, e := range exceptions {
		if e.FullDay() {
			return nil
		}
		blocked = append(blocked, Interval{Start: *e.StartMinute, End: *e.EndMinute})
	}

	out := SubtractAll(base, blocked)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
