package service

import (
	"context"
	"time"

	"qris-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically marks overdue pending intents as expired.
type ExpiryWorker struct {
	payments ports.PaymentService
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

// NewExpiryWorker creates a sweeper. Non-positive values fall back to a
// one minute interval and a batch of 200.
func NewExpiryWorker(payments ports.PaymentService, interval time.Duration, batch int, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	return &ExpiryWorker{
		payments: payments,
		interval: interval,
		batch:    batch,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("expiry worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("expiry worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A full batch triggers another pass right away.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.payments.ExpireOverdue(ctx, w.batch)
		total += n
		if err != nil {
			w.log.Error().Err(err).Msg("expiry sweep failed")
			break
		}
		if n < w.batch {
			break
		}
	}
	if total > 0 {
		w.log.Info().Int("expired", total).Msg("expired overdue payments")
	}
	return total
}
