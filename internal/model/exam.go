package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusClosed    ExamStatus = "CLOSED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an exam entity. Attempts treat it as read-only: the
// duration/window is applied at start time, total marks are re-read at
// evaluation time.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	BatchID          uuid.UUID  `json:"batch_id"`
	CourseID         uuid.UUID  `json:"course_id"`
	CreatedByFaculty *uuid.UUID `json:"created_by_faculty,omitempty"`
	Title            string     `json:"title"`
	DurationMinutes  int        `json:"duration_minutes"`
	TotalMarks       float64    `json:"total_marks"`
	MaxAttempts      int        `json:"max_attempts"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	Status           ExamStatus `json:"status"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	ShuffleOptions   bool       `json:"shuffle_options"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ExamQuestion is a multiple-choice question belonging to an exam.
type ExamQuestion struct {
	ID           uuid.UUID        `json:"id"`
	ExamID       uuid.UUID        `json:"exam_id"`
	QuestionText string           `json:"question_text"`
	Marks        float64          `json:"marks"`
	DisplayOrder int              `json:"display_order"`
	Options      []QuestionOption `json:"options,omitempty"`
}

// QuestionOption is one of the four options of a question. Exactly one
// option per question is correct; this is enforced at creation time and
// trusted (not re-validated) at evaluation time.
type QuestionOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionKey  string    `json:"option_key"` // A, B, C or D
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"-"` // never serialized toward students
}

// StudentQuestion is a question as exposed to an attempting student:
// no correctness information, options possibly shuffled.
type StudentQuestion struct {
	QuestionID   uuid.UUID       `json:"question_id"`
	QuestionText string          `json:"question_text"`
	Marks        float64         `json:"marks"`
	Options      []StudentOption `json:"options"`
}

// StudentOption is an option stripped of its is_correct flag.
type StudentOption struct {
	OptionID   uuid.UUID `json:"option_id"`
	OptionKey  string    `json:"option_key"`
	OptionText string    `json:"option_text"`
}
