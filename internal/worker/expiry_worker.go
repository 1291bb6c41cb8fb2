package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/service"
)

// expiryBatchLimit bounds one sweep so a backlog after downtime cannot
// starve the loop.
const expiryBatchLimit = 100

// ExpiryWorker is the server-side deadline authority: it periodically
// force-submits IN_PROGRESS attempts whose deadline passed without any
// client call arriving to close them.
type ExpiryWorker struct {
	attempts *service.AttemptService
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(attempts *service.AttemptService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		attempts: attempts,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	expired, err := w.attempts.ExpiredAttempts(ctx, expiryBatchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("Expiry scan failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	closed := 0
	for i := range expired {
		attempt := expired[i]
		outcome, err := w.attempts.ForceExpireAttempt(ctx, &attempt)
		if err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Force expire failed")
			continue
		}
		// Losing the CAS race to a concurrent client submit is fine; the
		// attempt is closed either way.
		if outcome != nil && outcome.AutoSubmitted {
			closed++
		}
	}

	w.log.Info().
		Int("expired", len(expired)).
		Int("closed", closed).
		Msg("Expiry sweep finished")
}
