package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credentia/certportal-backend/internal/model"
	"github.com/credentia/certportal-backend/internal/service"
)

// ExamRepository reads exam catalog data. The attempt core never writes
// exams; authoring belongs to the catalog collaborator.
type ExamRepository struct {
	db *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(db *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{db: db}
}

// GetExam fetches one exam, (nil, nil) when missing.
func (r *ExamRepository) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, batch_id, course_id, created_by_faculty, title,
		       duration_minutes, total_marks, max_attempts,
		       starts_at, ends_at, status,
		       shuffle_questions, shuffle_options, created_at, updated_at
		FROM exams
		WHERE id = $1`, examID)

	var e model.Exam
	err := row.Scan(&e.ID, &e.BatchID, &e.CourseID, &e.CreatedByFaculty, &e.Title,
		&e.DurationMinutes, &e.TotalMarks, &e.MaxAttempts,
		&e.StartsAt, &e.EndsAt, &e.Status,
		&e.ShuffleQuestions, &e.ShuffleOptions, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return &e, nil
}

// ListQuestions returns the exam's questions in display order with their
// options attached, options ordered by option key.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.ExamQuestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exam_id, question_text, marks, display_order
		FROM exam_questions
		WHERE exam_id = $1
		ORDER BY display_order, id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []model.ExamQuestion
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.ExamQuestion
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Marks, &q.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil
	}

	optRows, err := r.db.Query(ctx, `
		SELECT o.id, o.question_id, o.option_key, o.option_text, o.is_correct
		FROM question_options o
		JOIN exam_questions q ON q.id = o.question_id
		WHERE q.exam_id = $1
		ORDER BY o.question_id, o.option_key`, examID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.QuestionOption
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.OptionKey, &o.OptionText, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}

	return questions, nil
}

// QuestionKeys returns the grading key. A question without a registered
// correct option gets uuid.Nil, which can never equal a selected option.
func (r *ExamRepository) QuestionKeys(ctx context.Context, examID uuid.UUID) ([]service.QuestionKey, error) {
	rows, err := r.db.Query(ctx, `
		SELECT q.id, q.marks, o.id
		FROM exam_questions q
		LEFT JOIN question_options o ON o.question_id = q.id AND o.is_correct
		WHERE q.exam_id = $1
		ORDER BY q.display_order, q.id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list question keys: %w", err)
	}
	defer rows.Close()

	var keys []service.QuestionKey
	for rows.Next() {
		var k service.QuestionKey
		var correct *uuid.UUID
		if err := rows.Scan(&k.QuestionID, &k.Marks, &correct); err != nil {
			return nil, fmt.Errorf("scan question key: %w", err)
		}
		if correct != nil {
			k.CorrectOptionID = *correct
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question keys: %w", err)
	}
	return keys, nil
}
