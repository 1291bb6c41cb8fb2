package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/model"
)

// ResultRepository persists evaluation outcomes, one row per attempt.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// GetByAttempt fetches the result of an attempt, (nil, nil) when the
// attempt has not been evaluated.
func (r *ResultRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ExamResult, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, attempt_id, exam_id, student_id,
		       total_questions, correct_answers, wrong_answers, unanswered,
		       max_marks, marks_obtained, score_percentage, passed, evaluated_at
		FROM exam_results
		WHERE attempt_id = $1`, attemptID)

	var res model.ExamResult
	err := row.Scan(&res.ID, &res.AttemptID, &res.ExamID, &res.StudentID,
		&res.TotalQuestions, &res.CorrectAnswers, &res.WrongAnswers, &res.Unanswered,
		&res.MaxMarks, &res.MarksObtained, &res.ScorePercentage, &res.Passed, &res.EvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &res, nil
}

// Upsert creates or replaces the result keyed by attempt_id and fills the
// row id. Replacement keeps the original row id, so certificates keyed by
// result_id survive a re-evaluation.
func (r *ResultRepository) Upsert(ctx context.Context, result *model.ExamResult) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO exam_results
			(attempt_id, exam_id, student_id,
			 total_questions, correct_answers, wrong_answers, unanswered,
			 max_marks, marks_obtained, score_percentage, passed, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (attempt_id) DO UPDATE
		SET total_questions = EXCLUDED.total_questions,
		    correct_answers = EXCLUDED.correct_answers,
		    wrong_answers = EXCLUDED.wrong_answers,
		    unanswered = EXCLUDED.unanswered,
		    max_marks = EXCLUDED.max_marks,
		    marks_obtained = EXCLUDED.marks_obtained,
		    score_percentage = EXCLUDED.score_percentage,
		    passed = EXCLUDED.passed,
		    evaluated_at = EXCLUDED.evaluated_at
		RETURNING id`,
		result.AttemptID, result.ExamID, result.StudentID,
		result.TotalQuestions, result.CorrectAnswers, result.WrongAnswers, result.Unanswered,
		result.MaxMarks, result.MarksObtained, result.ScorePercentage, result.Passed,
		result.EvaluatedAt).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// ListByStudent returns the student's results newest first, joined with the
// exam title and the certificate number when one was issued.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.StudentResultRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT res.id, res.attempt_id, res.exam_id, e.title,
		       res.total_questions, res.correct_answers, res.wrong_answers, res.unanswered,
		       res.max_marks, res.marks_obtained, res.score_percentage, res.passed,
		       res.evaluated_at, c.certificate_no
		FROM exam_results res
		JOIN exams e ON e.id = res.exam_id
		LEFT JOIN certificates c ON c.result_id = res.id
		WHERE res.student_id = $1
		ORDER BY res.evaluated_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []model.StudentResultRow
	for rows.Next() {
		var row model.StudentResultRow
		if err := rows.Scan(&row.ResultID, &row.AttemptID, &row.ExamID, &row.ExamTitle,
			&row.TotalQuestions, &row.CorrectAnswers, &row.WrongAnswers, &row.Unanswered,
			&row.MaxMarks, &row.MarksObtained, &row.ScorePercentage, &row.Passed,
			&row.EvaluatedAt, &row.CertificateNo); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
