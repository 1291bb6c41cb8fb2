package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. Transitions are strictly
// IN_PROGRESS → SUBMITTED → EVALUATED; EVALUATED is terminal.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusEvaluated  AttemptStatus = "EVALUATED"
)

// ExamAttempt is one timed run of an exam by a student. IPAddress and
// UserAgent are captured at start and serve as the fingerprint baseline
// for mismatch detection on later calls.
type ExamAttempt struct {
	ID               uuid.UUID     `json:"id"`
	ExamID           uuid.UUID     `json:"exam_id"`
	StudentID        uuid.UUID     `json:"student_id"`
	AttemptNo        int           `json:"attempt_no"`
	StartedAt        time.Time     `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	Status           AttemptStatus `json:"status"`
	TimeSpentSeconds *int          `json:"time_spent_seconds,omitempty"`
	IPAddress        string        `json:"-"`
	UserAgent        string        `json:"-"`
}

// AttemptAnswer is the stored answer of one question within an attempt.
// One row per (attempt, question), upserted on each save. AnsweredAt is
// set only while an option is selected.
type AttemptAnswer struct {
	ID                uuid.UUID  `json:"id"`
	AttemptID         uuid.UUID  `json:"attempt_id"`
	ExamID            uuid.UUID  `json:"exam_id"`
	QuestionID        uuid.UUID  `json:"question_id"`
	SelectedOptionID  *uuid.UUID `json:"selected_option_id,omitempty"`
	AnsweredAt        *time.Time `json:"answered_at,omitempty"`
	IsMarkedForReview bool       `json:"is_marked_for_review"`
}

// SecurityEventType enumerates anti-cheat telemetry event types.
type SecurityEventType string

const (
	EventTabSwitch            SecurityEventType = "TAB_SWITCH"
	EventFullscreenExit       SecurityEventType = "FULLSCREEN_EXIT"
	EventCopyPaste            SecurityEventType = "COPY_PASTE"
	EventDevToolsOpen         SecurityEventType = "DEVTOOLS_OPEN"
	EventMultipleFaceDetected SecurityEventType = "MULTIPLE_FACE_DETECTED"
	EventIPMismatch           SecurityEventType = "IP_MISMATCH"
	EventUserAgentMismatch    SecurityEventType = "USER_AGENT_MISMATCH"
	EventAutoSubmit           SecurityEventType = "AUTO_SUBMIT"
)

// AttemptSecurityEvent is an append-only anti-cheat log entry. Rows are
// never mutated or deleted.
type AttemptSecurityEvent struct {
	ID         uuid.UUID         `json:"id"`
	AttemptID  uuid.UUID         `json:"attempt_id"`
	StudentID  uuid.UUID         `json:"student_id"`
	EventType  SecurityEventType `json:"event_type"`
	EventData  json.RawMessage   `json:"event_data,omitempty"`
	RiskScore  int               `json:"risk_score"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// ─── Request DTOs ───────────────────────────────────────────────────────────

// AnswerUpsert is one answer entry within a save request.
type AnswerUpsert struct {
	QuestionID        uuid.UUID  `json:"question_id" binding:"required"`
	SelectedOptionID  *uuid.UUID `json:"selected_option_id"`
	IsMarkedForReview *bool      `json:"is_marked_for_review"`
}

// SaveAnswersRequest is the payload for saving attempt answers.
type SaveAnswersRequest struct {
	Answers []AnswerUpsert `json:"answers" binding:"required,min=1,dive"`
}

// HeartbeatRequest carries client-side anti-cheat telemetry counters.
type HeartbeatRequest struct {
	TabSwitchCount       int  `json:"tab_switch_count" binding:"min=0"`
	FullscreenExitCount  int  `json:"fullscreen_exit_count" binding:"min=0"`
	CopyPasteCount       int  `json:"copy_paste_count" binding:"min=0"`
	DevToolsOpen         bool `json:"devtools_open"`
	MultipleFaceDetected bool `json:"multiple_face_detected"`
}

// RecordSecurityEventRequest reports one discrete security event.
type RecordSecurityEventRequest struct {
	EventType SecurityEventType `json:"event_type" binding:"required,oneof=TAB_SWITCH FULLSCREEN_EXIT COPY_PASTE DEVTOOLS_OPEN MULTIPLE_FACE_DETECTED IP_MISMATCH USER_AGENT_MISMATCH"`
	RiskScore *int              `json:"risk_score" binding:"omitempty,min=0,max=10"`
	EventData json.RawMessage   `json:"event_data"`
}

// SubmitAttemptRequest is the optional manual-submit payload. The claimed
// time spent is clamped server-side to at most the wall-clock elapsed.
type SubmitAttemptRequest struct {
	TimeSpentSeconds *int `json:"time_spent_seconds" binding:"omitempty,min=0"`
}
