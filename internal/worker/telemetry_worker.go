package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/config"
	"github.com/credentia/certportal-backend/internal/repository"
	"github.com/credentia/certportal-backend/internal/service"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// TelemetryWorker drains the heartbeat queue and archives snapshots into
// attempt_telemetry in batches. The archive is the raw audit trail behind
// the per-event risk scores in attempt_security_events.
type TelemetryWorker struct {
	repo *repository.TelemetryRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewTelemetryWorker creates a new TelemetryWorker.
func NewTelemetryWorker(repo *repository.TelemetryRepository, rdb *redis.Client, log zerolog.Logger) *TelemetryWorker {
	return &TelemetryWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "telemetry_worker").Logger(),
	}
}

// Start runs the drain loop until ctx is cancelled.
func (w *TelemetryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("TelemetryWorker started")

	buffer := make([]service.TelemetrySnapshot, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis. BLPop blocks for 1 second and returns
		// immediately when data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistTelemetryQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var snapshot service.TelemetrySnapshot
		if err := json.Unmarshal([]byte(result[1]), &snapshot); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, snapshot)
	}
}

// flushSafe attempts the bulk copy, then row-by-row recovery, then requeue.
func (w *TelemetryWorker) flushSafe(ctx context.Context, batch []service.TelemetrySnapshot) {
	if err := w.repo.BulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *TelemetryWorker) fallbackInsert(ctx context.Context, batch []service.TelemetrySnapshot) {
	requeueList := make([]service.TelemetrySnapshot, 0)

	for _, s := range batch {
		if err := w.repo.InsertOne(ctx, s); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", s.AttemptID.String()).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, s)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *TelemetryWorker) requeue(ctx context.Context, items []service.TelemetrySnapshot) {
	pipe := w.rdb.Pipeline()
	for _, s := range items {
		data, _ := json.Marshal(s)
		pipe.RPush(ctx, config.WorkerKey.PersistTelemetryQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing if the database is down hard.
	time.Sleep(2 * time.Second)
}

func (w *TelemetryWorker) shutdown(buffer []service.TelemetrySnapshot) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
