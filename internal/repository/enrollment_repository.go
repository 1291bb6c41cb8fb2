package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository answers enrollment eligibility questions.
type EnrollmentRepository struct {
	db *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(db *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// HasAttemptableEnrollment reports whether the student holds an ACTIVE or
// COMPLETED enrollment in the batch. DROPPED enrollments cannot attempt.
func (r *EnrollmentRepository) HasAttemptableEnrollment(ctx context.Context, studentID, batchID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM student_enrollments
			WHERE student_id = $1 AND batch_id = $2
			  AND status IN ('ACTIVE', 'COMPLETED')
		)`, studentID, batchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}
