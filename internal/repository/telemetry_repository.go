package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/service"
)

// TelemetryRepository archives raw heartbeat snapshots drained from the
// Redis queue. Batches land via the binary copy protocol; the single-row
// path exists as the worker's fallback.
type TelemetryRepository struct {
	db *pgxpool.Pool
}

// NewTelemetryRepository creates a new TelemetryRepository.
func NewTelemetryRepository(db *pgxpool.Pool) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

var telemetryColumns = []string{
	"attempt_id", "exam_id", "student_id",
	"tab_switch_count", "fullscreen_exit_count", "copy_paste_count",
	"devtools_open", "multiple_face_detected", "reported_at",
}

func telemetryRow(s service.TelemetrySnapshot) []any {
	return []any{
		s.AttemptID, s.ExamID, s.StudentID,
		s.Telemetry.TabSwitchCount, s.Telemetry.FullscreenExitCount, s.Telemetry.CopyPasteCount,
		s.Telemetry.DevToolsOpen, s.Telemetry.MultipleFaceDetected, time.Unix(s.Timestamp, 0).UTC(),
	}
}

// BulkInsert copies a batch of snapshots into attempt_telemetry.
func (r *TelemetryRepository) BulkInsert(ctx context.Context, snapshots []service.TelemetrySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, telemetryRow(s))
	}

	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"attempt_telemetry"},
		telemetryColumns,
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy telemetry batch: %w", err)
	}
	return nil
}

// InsertOne writes a single snapshot. Used when a batch copy fails and the
// worker retries rows individually to isolate the poison message.
func (r *TelemetryRepository) InsertOne(ctx context.Context, snapshot service.TelemetrySnapshot) error {
	row := telemetryRow(snapshot)
	_, err := r.db.Exec(ctx, `
		INSERT INTO attempt_telemetry
			(attempt_id, exam_id, student_id,
			 tab_switch_count, fullscreen_exit_count, copy_paste_count,
			 devtools_open, multiple_face_detected, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, row...)
	if err != nil {
		return fmt.Errorf("insert telemetry snapshot: %w", err)
	}
	return nil
}
