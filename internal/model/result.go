package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is the auto-graded outcome of an attempt. One row per attempt
// (unique attempt_id); re-evaluation replaces the row in place.
type ExamResult struct {
	ID              uuid.UUID `json:"id"`
	AttemptID       uuid.UUID `json:"attempt_id"`
	ExamID          uuid.UUID `json:"exam_id"`
	StudentID       uuid.UUID `json:"student_id"`
	TotalQuestions  int       `json:"total_questions"`
	CorrectAnswers  int       `json:"correct_answers"`
	WrongAnswers    int       `json:"wrong_answers"`
	Unanswered      int       `json:"unanswered"`
	MaxMarks        float64   `json:"max_marks"`
	MarksObtained   float64   `json:"marks_obtained"`
	ScorePercentage float64   `json:"score_percentage"`
	Passed          bool      `json:"passed"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
}

// StudentResultRow is one entry of the student's results listing, joined
// with the exam title and certificate number when one was issued.
type StudentResultRow struct {
	ResultID        uuid.UUID `json:"result_id"`
	AttemptID       uuid.UUID `json:"attempt_id"`
	ExamID          uuid.UUID `json:"exam_id"`
	ExamTitle       string    `json:"exam_title"`
	TotalQuestions  int       `json:"total_questions"`
	CorrectAnswers  int       `json:"correct_answers"`
	WrongAnswers    int       `json:"wrong_answers"`
	Unanswered      int       `json:"unanswered"`
	MaxMarks        float64   `json:"max_marks"`
	MarksObtained   float64   `json:"marks_obtained"`
	ScorePercentage float64   `json:"score_percentage"`
	Passed          bool      `json:"passed"`
	EvaluatedAt     time.Time `json:"evaluated_at"`
	CertificateNo   *string   `json:"certificate_no,omitempty"`
}
