package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"vetsched/internal/domain"
	"vetsched/internal/store"
)

const defaultLockTimeout = 2 * time.Second

type AppointmentRepo struct {
	db          *bun.DB
	lockTimeout time.Duration
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db, lockTimeout: defaultLockTimeout}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) InDayTransaction(ctx context.Context, professionalID uuid.UUID, dates []time.Time, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendarDays(ctx, tx, professionalID, dates, r.lockTimeout); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockCalendarDays serializes bookings per (professional, date). Keys are
// taken in a stable order so cross-day reschedules cannot deadlock. A lock
// that cannot be acquired within the timeout surfaces as ErrBusy.
func lockCalendarDays(ctx context.Context, tx bun.Tx, professionalID uuid.UUID, dates []time.Time, timeout time.Duration) error {
	keys := make([]string, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := professionalID.String() + "@" + domain.DateOf(d).Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if timeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
		if _, err := tx.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}

	for _, key := range keys {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Exec(ctx); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
				return store.ErrBusy
			}
			return err
		}
	}
	return nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepo) ListDay(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("professional_id = ?", professionalID).
		Where("appointment_date = ?", domain.DateOf(date)).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) History(ctx context.Context, appointmentID uuid.UUID) ([]domain.HistoryEntry, error) {
	var rows []domain.HistoryEntry
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t bookingTx) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := t.tx.NewSelect().
		Model(&appt).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (t bookingTx) FindOverlapping(ctx context.Context, professionalID uuid.UUID, date time.Time, iv domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := t.tx.NewSelect().
		Model(&rows).
		Where("professional_id = ?", professionalID).
		Where("appointment_date = ?", domain.DateOf(date)).
		Where("status IN (?)", bun.In([]domain.AppointmentStatus{domain.StatusScheduled, domain.StatusConfirmed})).
		Where("start_minute < ?", iv.End).
		Where("start_minute + duration_minutes > ?", iv.Start).
		OrderExpr("start_minute ASC")
	if excludeID != uuid.Nil {
		q = q.Where("id != ?", excludeID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (t bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, mapConstraintError(err)
	}
	return m, nil
}

func (t bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	m := appt
	res, err := t.tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
	if err != nil {
		return mapConstraintError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := t.tx.NewInsert().Model(&entry).Exec(ctx)
	return err
}

func (t bookingTx) AppendOutbox(ctx context.Context, evt domain.OutboxEvent) error {
	_, err := t.tx.NewInsert().Model(&evt).Exec(ctx)
	return err
}

// mapConstraintError turns a violation of the appointments_no_overlap
// exclusion constraint into ErrConflict. The constraint is a backstop; the
// advisory-lock path should reject conflicts before the insert.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
		return store.ErrConflict
	}
	return err
}
