package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OutboxEvent is a pending notification row, written in the same
// transaction as the appointment mutation it describes and published to the
// broker by a background relay.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID             int64      `bun:"id,pk,autoincrement"`
	AppointmentID  uuid.UUID  `bun:"appointment_id,notnull,type:uuid"`
	ProfessionalID uuid.UUID  `bun:"professional_id,notnull,type:uuid"`
	EventType      string     `bun:"event_type,notnull"`
	Payload        []byte     `bun:"payload,notnull,type:jsonb"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	PublishedAt    *time.Time `bun:"published_at"`
}

func (e *OutboxEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}
