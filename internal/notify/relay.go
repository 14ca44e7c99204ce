package notify

import (
	"context"
	"log/slog"
	"time"

	"vetsched/internal/store"
)

const defaultBatchSize = 100

// Relay drains the outbox on an interval, handing pending events to the
// publisher. Events stay in the outbox until the publisher accepts them, so
// a broker outage delays notifications without losing them.
type Relay struct {
	outbox   store.OutboxRepository
	pub      Publisher
	log      *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(outbox store.OutboxRepository, pub Publisher, log *slog.Logger, interval time.Duration) *Relay {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		outbox:   outbox,
		pub:      pub,
		log:      log.With(slog.String("component", "notify.relay")),
		interval: interval,
		batch:    defaultBatchSize,
	}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		n, err := r.outbox.RelayBatch(ctx, r.batch, r.pub.Publish)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("outbox relay failed", slog.Any("err", err))
			return
		}
		if n == 0 {
			return
		}
		r.log.Debug("outbox events published", slog.Int("count", n))
	}
}
