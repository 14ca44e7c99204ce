package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type HistoryAction string

const (
	HistoryCreated     HistoryAction = "created"
	HistoryConfirmed   HistoryAction = "confirmed"
	HistoryCompleted   HistoryAction = "completed"
	HistoryCancelled   HistoryAction = "cancelled"
	HistoryNoShow      HistoryAction = "no_show"
	HistoryRescheduled HistoryAction = "rescheduled"
	HistoryEdited      HistoryAction = "edited"
)

// HistoryEntry is one immutable audit record on an appointment. Entries are
// appended inside the same transaction as the mutation they describe, so Seq
// order matches mutation order.
type HistoryEntry struct {
	bun.BaseModel `bun:"table:appointment_history"`

	Seq           int64         `bun:"seq,pk,autoincrement"`
	AppointmentID uuid.UUID     `bun:"appointment_id,notnull,type:uuid"`
	Action        HistoryAction `bun:"action,notnull"`
	Actor         string        `bun:"actor,notnull"`
	Detail        string        `bun:"detail"`
	CreatedAt     time.Time     `bun:"created_at,notnull"`
}

func (h *HistoryEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if h.CreatedAt.IsZero() {
			h.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

// HistoryActionFor maps a lifecycle status to its history action.
func HistoryActionFor(status AppointmentStatus) HistoryAction {
	switch status {
	case StatusConfirmed:
		return HistoryConfirmed
	case StatusCompleted:
		return HistoryCompleted
	case StatusCancelled:
		return HistoryCancelled
	case StatusNoShow:
		return HistoryNoShow
	default:
		return HistoryCreated
	}
}
