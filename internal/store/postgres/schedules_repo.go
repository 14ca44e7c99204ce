package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"vetsched/internal/domain"
	"vetsched/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) WorkingIntervals(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Interval, error) {
	date = domain.DateOf(date)

	var weekly []domain.Schedule
	err := r.db.NewSelect().
		Model(&weekly).
		Where("professional_id = ?", professionalID).
		Where("weekday = ?", int(date.Weekday())).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(weekly) == 0 {
		return nil, store.ErrNotConfigured
	}

	var exceptions []domain.ScheduleException
	err = r.db.NewSelect().
		Model(&exceptions).
		Where("professional_id = ?", professionalID).
		Where("exception_date = ?", date).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return domain.WorkingIntervals(weekly, exceptions), nil
}

func (r *ScheduleRepo) DefaultDuration(ctx context.Context, professionalID uuid.UUID) (int, error) {
	var prof domain.Professional
	err := r.db.NewSelect().
		Model(&prof).
		Where("id = ?", professionalID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return prof.DefaultDurationMinutes, nil
}
