package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/model"
)

// SecurityEventRepository appends to the immutable anti-cheat log. There is
// deliberately no update or delete path.
type SecurityEventRepository struct {
	db *pgxpool.Pool
}

// NewSecurityEventRepository creates a new SecurityEventRepository.
func NewSecurityEventRepository(db *pgxpool.Pool) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Append inserts one event and fills the generated id.
func (r *SecurityEventRepository) Append(ctx context.Context, event *model.AttemptSecurityEvent) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO attempt_security_events
			(attempt_id, student_id, event_type, event_data, risk_score, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		event.AttemptID, event.StudentID, event.EventType,
		event.EventData, event.RiskScore, event.OccurredAt).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
