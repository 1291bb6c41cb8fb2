package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/model"
)

const uniqueViolation = "23505"

const attemptColumns = `id, exam_id, student_id, attempt_no, started_at,
	submitted_at, status, time_spent_seconds, ip_address, user_agent`

// AttemptRepository owns attempt and answer persistence. The
// one-active-attempt invariant lives in the partial unique index
// uq_attempts_one_active; status transitions are compare-and-swap updates.
type AttemptRepository struct {
	db *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func scanAttempt(row pgx.Row) (*model.ExamAttempt, error) {
	var a model.ExamAttempt
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNo, &a.StartedAt,
		&a.SubmittedAt, &a.Status, &a.TimeSpentSeconds, &a.IPAddress, &a.UserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOwned fetches an attempt scoped to its owner.
func (r *AttemptRepository) GetOwned(ctx context.Context, attemptID, studentID uuid.UUID) (*model.ExamAttempt, error) {
	attempt, err := scanAttempt(r.db.QueryRow(ctx, `
		SELECT `+attemptColumns+`
		FROM exam_attempts
		WHERE id = $1 AND student_id = $2`, attemptID, studentID))
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// FindInProgress returns the student's active attempt for the exam, if any.
func (r *AttemptRepository) FindInProgress(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamAttempt, error) {
	attempt, err := scanAttempt(r.db.QueryRow(ctx, `
		SELECT `+attemptColumns+`
		FROM exam_attempts
		WHERE exam_id = $1 AND student_id = $2 AND status = 'IN_PROGRESS'`, examID, studentID))
	if err != nil {
		return nil, fmt.Errorf("find active attempt: %w", err)
	}
	return attempt, nil
}

// CountAttempts counts all attempts of the student on the exam regardless
// of status.
func (r *AttemptRepository) CountAttempts(ctx context.Context, examID, studentID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM exam_attempts
		WHERE exam_id = $1 AND student_id = $2`, examID, studentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// Create inserts a new IN_PROGRESS attempt and fills the generated id. A
// partial-unique-index violation maps to model.ErrDuplicateActiveAttempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt *model.ExamAttempt) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO exam_attempts
			(exam_id, student_id, attempt_no, started_at, status, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		attempt.ExamID, attempt.StudentID, attempt.AttemptNo, attempt.StartedAt,
		attempt.Status, attempt.IPAddress, attempt.UserAgent).Scan(&attempt.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrDuplicateActiveAttempt
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// TransitionStatus performs a compare-and-swap status update. The affected
// row count tells the caller whether it won the transition.
func (r *AttemptRepository) TransitionStatus(ctx context.Context, attemptID uuid.UUID, from, to model.AttemptStatus, submittedAt *time.Time, timeSpentSeconds *int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE exam_attempts
		SET status = $1,
		    submitted_at = COALESCE($2, submitted_at),
		    time_spent_seconds = COALESCE($3, time_spent_seconds)
		WHERE id = $4 AND status = $5`,
		to, submittedAt, timeSpentSeconds, attemptID, from)
	if err != nil {
		return false, fmt.Errorf("transition attempt status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertAnswers writes one row per question inside a transaction. Selecting
// an option stamps answered_at; clearing the selection nulls both fields.
func (r *AttemptRepository) UpsertAnswers(ctx context.Context, attempt *model.ExamAttempt, answers []model.AnswerUpsert, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin answers tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range answers {
		var answeredAt *time.Time
		if a.SelectedOptionID != nil {
			answeredAt = &now
		}
		marked := false
		if a.IsMarkedForReview != nil {
			marked = *a.IsMarkedForReview
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO attempt_answers
				(attempt_id, exam_id, question_id, selected_option_id, answered_at, is_marked_for_review)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (attempt_id, question_id) DO UPDATE
			SET selected_option_id = EXCLUDED.selected_option_id,
			    answered_at = EXCLUDED.answered_at,
			    is_marked_for_review = EXCLUDED.is_marked_for_review`,
			attempt.ID, attempt.ExamID, a.QuestionID, a.SelectedOptionID, answeredAt, marked)
		if err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit answers tx: %w", err)
	}
	return nil
}

// AnsweredCount counts questions with a selected option.
func (r *AttemptRepository) AnsweredCount(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM attempt_answers
		WHERE attempt_id = $1 AND selected_option_id IS NOT NULL`, attemptID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return n, nil
}

// SelectedOptions returns question id → selected option id for grading.
func (r *AttemptRepository) SelectedOptions(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT question_id, selected_option_id
		FROM attempt_answers
		WHERE attempt_id = $1 AND selected_option_id IS NOT NULL`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list selected options: %w", err)
	}
	defer rows.Close()

	selected := make(map[uuid.UUID]uuid.UUID)
	for rows.Next() {
		var questionID, optionID uuid.UUID
		if err := rows.Scan(&questionID, &optionID); err != nil {
			return nil, fmt.Errorf("scan selected option: %w", err)
		}
		selected[questionID] = optionID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selected options: %w", err)
	}
	return selected, nil
}

// ListExpiredInProgress returns IN_PROGRESS attempts whose effective
// deadline lies before now. The deadline mirrors the service computation:
// started_at plus the exam duration, clamped to the exam's end of window.
func (r *AttemptRepository) ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.exam_id, a.student_id, a.attempt_no, a.started_at,
		       a.submitted_at, a.status, a.time_spent_seconds, a.ip_address, a.user_agent
		FROM exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.status = 'IN_PROGRESS'
		  AND LEAST(
		        a.started_at + e.duration_minutes * INTERVAL '1 minute',
		        COALESCE(e.ends_at, 'infinity'::timestamptz)
		      ) < $1
		ORDER BY a.started_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.ExamAttempt
	for rows.Next() {
		var a model.ExamAttempt
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNo, &a.StartedAt,
			&a.SubmittedAt, &a.Status, &a.TimeSpentSeconds, &a.IPAddress, &a.UserAgent); err != nil {
			return nil, fmt.Errorf("scan expired attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired attempts: %w", err)
	}
	return attempts, nil
}
