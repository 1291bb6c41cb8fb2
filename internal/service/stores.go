package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/credentia/certportal-backend/internal/model"
)

// ClientContext carries the transport-level fingerprint of the caller.
// Used only for mismatch detection, never for authorization.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// The attempt lifecycle is written against these narrow store contracts
// rather than concrete repositories, so state checks and compare-and-swap
// transitions stay explicit and the state machine is testable without a
// database. Lookups that can miss return (nil, nil); repositories map
// pgx.ErrNoRows accordingly.

// ExamStore reads exam, question and answer-key data (catalog side,
// read-only from the attempt's perspective).
type ExamStore interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	// ListQuestions returns the exam's questions in display order, with
	// their options ordered by option key.
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.ExamQuestion, error)
	// QuestionKeys returns the grading key: one entry per question with its
	// marks and correct option id (uuid.Nil when none is registered).
	QuestionKeys(ctx context.Context, examID uuid.UUID) ([]QuestionKey, error)
}

// EnrollmentStore answers whether a student may attempt a batch's exams.
type EnrollmentStore interface {
	HasAttemptableEnrollment(ctx context.Context, studentID, batchID uuid.UUID) (bool, error)
}

// AttemptStore owns attempt, answer and expiry persistence.
type AttemptStore interface {
	// GetOwned fetches an attempt filtered by owner; a foreign attempt id
	// yields (nil, nil), indistinguishable from a missing one.
	GetOwned(ctx context.Context, attemptID, studentID uuid.UUID) (*model.ExamAttempt, error)
	FindInProgress(ctx context.Context, examID, studentID uuid.UUID) (*model.ExamAttempt, error)
	CountAttempts(ctx context.Context, examID, studentID uuid.UUID) (int, error)
	// Create inserts an IN_PROGRESS attempt, returning
	// model.ErrDuplicateActiveAttempt when the one-active-attempt index
	// rejects it.
	Create(ctx context.Context, attempt *model.ExamAttempt) error
	// TransitionStatus performs a compare-and-swap status update and
	// reports whether this caller won the transition. submittedAt and
	// timeSpentSeconds are written only when non-nil.
	TransitionStatus(ctx context.Context, attemptID uuid.UUID, from, to model.AttemptStatus, submittedAt *time.Time, timeSpentSeconds *int) (bool, error)
	// UpsertAnswers writes one row per question atomically; selecting an
	// option stamps answeredAt, clearing it nulls both fields.
	UpsertAnswers(ctx context.Context, attempt *model.ExamAttempt, answers []model.AnswerUpsert, now time.Time) error
	AnsweredCount(ctx context.Context, attemptID uuid.UUID) (int, error)
	// SelectedOptions returns question id → selected option id for every
	// answered question of the attempt.
	SelectedOptions(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	// ListExpiredInProgress returns IN_PROGRESS attempts whose deadline
	// (started_at + duration, clamped to ends_at) lies before now.
	ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error)
}

// SecurityEventStore appends to the immutable anti-cheat log.
type SecurityEventStore interface {
	Append(ctx context.Context, event *model.AttemptSecurityEvent) error
}

// ResultStore persists evaluation outcomes, one row per attempt.
type ResultStore interface {
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.ExamResult, error)
	// Upsert creates or replaces the result keyed by attempt_id and fills
	// the row id on the model.
	Upsert(ctx context.Context, result *model.ExamResult) error
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.StudentResultRow, error)
}

// CertificateIssuer is the issuance gate consumed on terminal transitions.
type CertificateIssuer interface {
	IssueIfEligible(ctx context.Context, input CertificateIssueInput) (*CertificateSummary, error)
	SummaryByResult(ctx context.Context, resultID uuid.UUID) (*CertificateSummary, error)
}

// TelemetryQueue buffers raw heartbeat snapshots for asynchronous archival.
type TelemetryQueue interface {
	EnqueueHeartbeat(ctx context.Context, snapshot TelemetrySnapshot) error
}

// MonitorPublisher fans security events out to live proctoring watchers.
type MonitorPublisher interface {
	PublishSecurityEvent(ctx context.Context, examID uuid.UUID, event *model.AttemptSecurityEvent)
}

// TelemetrySnapshot is the queued heartbeat audit record.
type TelemetrySnapshot struct {
	AttemptID uuid.UUID              `json:"attempt_id"`
	ExamID    uuid.UUID              `json:"exam_id"`
	StudentID uuid.UUID              `json:"student_id"`
	Telemetry model.HeartbeatRequest `json:"telemetry"`
	Timestamp int64                  `json:"timestamp"`
}
