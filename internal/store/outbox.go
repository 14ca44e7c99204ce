package store

import (
	"context"

	"vetsched/internal/domain"
)

type OutboxRepository interface {
	// RelayBatch fetches up to limit unpublished events under a row lock,
	// hands them to publish, and marks them published when it returns nil.
	// Returns the number of events handled.
	RelayBatch(ctx context.Context, limit int, publish func(ctx context.Context, events []domain.OutboxEvent) error) (int, error)
}
