package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/model"
)

// Forced auto-submit reasons recorded on the AUTO_SUBMIT security event.
const (
	ReasonTimeLimitReached = "TIME_LIMIT_REACHED"
	ReasonAntiCheatTrigger = "ANTI_CHEAT_TRIGGER"
)

// AttemptService owns the exam-attempt state machine:
// IN_PROGRESS → SUBMITTED → EVALUATED, with EVALUATED terminal. All writes
// re-validate current state immediately before acting; terminal transitions
// go through compare-and-swap status updates so concurrent submits cannot
// both evaluate.
type AttemptService struct {
	exams       ExamStore
	enrollments EnrollmentStore
	attempts    AttemptStore
	events      SecurityEventStore
	results     ResultStore
	certs       CertificateIssuer
	telemetry   TelemetryQueue   // optional
	monitor     MonitorPublisher // optional
	shuffler    *Shuffler
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService. telemetry and monitor may
// be nil; the corresponding side channels are then skipped.
func NewAttemptService(
	exams ExamStore,
	enrollments EnrollmentStore,
	attempts AttemptStore,
	events SecurityEventStore,
	results ResultStore,
	certs CertificateIssuer,
	telemetry TelemetryQueue,
	monitor MonitorPublisher,
	shuffler *Shuffler,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		exams:       exams,
		enrollments: enrollments,
		attempts:    attempts,
		events:      events,
		results:     results,
		certs:       certs,
		telemetry:   telemetry,
		monitor:     monitor,
		shuffler:    shuffler,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// ─── Response shapes ────────────────────────────────────────────────────────

// EvaluationResult is the full graded outcome returned on terminal paths.
type EvaluationResult struct {
	ResultID        uuid.UUID           `json:"result_id"`
	AttemptID       uuid.UUID           `json:"attempt_id"`
	ExamID          uuid.UUID           `json:"exam_id"`
	StudentID       uuid.UUID           `json:"student_id"`
	TotalQuestions  int                 `json:"total_questions"`
	CorrectAnswers  int                 `json:"correct_answers"`
	WrongAnswers    int                 `json:"wrong_answers"`
	Unanswered      int                 `json:"unanswered"`
	MaxMarks        float64             `json:"max_marks"`
	MarksObtained   float64             `json:"marks_obtained"`
	ScorePercentage float64             `json:"score_percentage"`
	Passed          bool                `json:"passed"`
	EvaluatedAt     time.Time           `json:"evaluated_at"`
	Certificate     *CertificateSummary `json:"certificate,omitempty"`
}

// SubmitOutcome is the result of any terminal transition, manual or forced.
type SubmitOutcome struct {
	AttemptID     uuid.UUID           `json:"attempt_id"`
	Status        model.AttemptStatus `json:"status"`
	AutoSubmitted bool                `json:"auto_submitted"`
	Reason        string              `json:"reason,omitempty"`
	Result        *EvaluationResult   `json:"result,omitempty"`
}

// StartAttemptResponse is returned by StartExam.
type StartAttemptResponse struct {
	AttemptID        uuid.UUID               `json:"attempt_id"`
	ExamID           uuid.UUID               `json:"exam_id"`
	AttemptNo        int                     `json:"attempt_no"`
	StartedAt        time.Time               `json:"started_at"`
	DeadlineAt       time.Time               `json:"deadline_at"`
	RemainingSeconds int                     `json:"remaining_seconds"`
	TimeLimitMinutes int                     `json:"time_limit_minutes"`
	Status           model.AttemptStatus     `json:"status"`
	Questions        []model.StudentQuestion `json:"questions"`
}

// SaveAnswersResponse is returned by SaveAnswers. When the deadline passed
// before the save, AutoSubmitted is true and Submit carries the forced
// outcome instead of the save acknowledgment.
type SaveAnswersResponse struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	Status           model.AttemptStatus `json:"status"`
	AutoSubmitted    bool                `json:"auto_submitted"`
	AnsweredCount    int                 `json:"answered_count"`
	DeadlineAt       time.Time           `json:"deadline_at,omitzero"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Submit           *SubmitOutcome      `json:"submit,omitempty"`
}

// HeartbeatResponse is returned by Heartbeat.
type HeartbeatResponse struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	Status           model.AttemptStatus `json:"status"`
	AutoSubmitted    bool                `json:"auto_submitted"`
	Reason           string              `json:"reason,omitempty"`
	DeadlineAt       time.Time           `json:"deadline_at,omitzero"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	Result           *EvaluationResult   `json:"result,omitempty"`
}

// SecurityEventResponse is returned by RecordSecurityEvent.
type SecurityEventResponse struct {
	EventID       uuid.UUID               `json:"event_id,omitzero"`
	AttemptID     uuid.UUID               `json:"attempt_id"`
	EventType     model.SecurityEventType `json:"event_type"`
	RiskScore     int                     `json:"risk_score"`
	OccurredAt    time.Time               `json:"occurred_at,omitzero"`
	AutoSubmitted bool                    `json:"auto_submitted"`
	Submit        *SubmitOutcome          `json:"submit,omitempty"`
}

// AttemptStateResponse is the read-path snapshot of an attempt.
type AttemptStateResponse struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	ExamID           uuid.UUID           `json:"exam_id"`
	Status           model.AttemptStatus `json:"status"`
	StartedAt        time.Time           `json:"started_at"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	DeadlineAt       time.Time           `json:"deadline_at"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	AnsweredCount    int                 `json:"answered_count"`
	Result           *EvaluationResult   `json:"result,omitempty"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// StartExam validates the exam window and enrollment, frees an expired prior
// attempt if one exists, enforces the max-attempts ceiling and creates a new
// IN_PROGRESS attempt. Returns the (optionally shuffled) question set and
// deadline. The one-active-attempt invariant is ultimately enforced by the
// storage layer's partial unique index, not by the pre-check alone.
func (s *AttemptService) StartExam(ctx context.Context, studentID, examID uuid.UUID, client ClientContext) (*StartAttemptResponse, error) {
	exam, err := s.getExamOrFail(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.validateExamWindowForStart(exam); err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.HasAttemptableEnrollment(ctx, studentID, exam.BatchID)
	if err != nil {
		return nil, InternalError("check enrollment", err)
	}
	if !enrolled {
		return nil, NotFoundError("student is not enrolled in this exam batch")
	}

	existing, err := s.attempts.FindInProgress(ctx, examID, studentID)
	if err != nil {
		return nil, InternalError("find active attempt", err)
	}
	if existing != nil {
		outcome, err := s.autoSubmitIfExpired(ctx, existing, exam, client)
		if err != nil {
			return nil, err
		}
		if outcome == nil {
			return nil, ConflictError("student already has an active attempt for this exam")
		}
	}

	used, err := s.attempts.CountAttempts(ctx, examID, studentID)
	if err != nil {
		return nil, InternalError("count attempts", err)
	}
	if used >= exam.MaxAttempts {
		return nil, ConflictError("maximum number of attempts reached for this exam")
	}

	questions, err := s.studentQuestions(ctx, exam)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt := &model.ExamAttempt{
		ExamID:    examID,
		StudentID: studentID,
		AttemptNo: used + 1,
		StartedAt: now,
		Status:    model.AttemptStatusInProgress,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if err == model.ErrDuplicateActiveAttempt {
			// Lost the race against a concurrent start.
			return nil, ConflictError("student already has an active attempt for this exam")
		}
		return nil, InternalError("create attempt", err)
	}

	deadline := AttemptDeadline(attempt.StartedAt, exam.DurationMinutes, exam.EndsAt)
	return &StartAttemptResponse{
		AttemptID:        attempt.ID,
		ExamID:           attempt.ExamID,
		AttemptNo:        attempt.AttemptNo,
		StartedAt:        attempt.StartedAt,
		DeadlineAt:       deadline,
		RemainingSeconds: RemainingSeconds(deadline, s.now()),
		TimeLimitMinutes: exam.DurationMinutes,
		Status:           attempt.Status,
		Questions:        questions,
	}, nil
}

// SaveAnswers upserts one answer row per question. Re-saving the same set
// is idempotent. If the deadline passed, the forced submit takes over and
// the save is not applied.
func (s *AttemptService) SaveAnswers(ctx context.Context, studentID, attemptID uuid.UUID, req model.SaveAnswersRequest, client ClientContext) (*SaveAnswersResponse, error) {
	attempt, exam, err := s.getOwnedAttemptWithExam(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ConflictError("attempt is no longer in progress")
	}

	outcome, err := s.autoSubmitIfExpired(ctx, attempt, exam, client)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return &SaveAnswersResponse{
			AttemptID:     attempt.ID,
			Status:        outcome.Status,
			AutoSubmitted: true,
			Submit:        outcome,
		}, nil
	}

	s.recordFingerprintEvents(ctx, attempt, client)

	if err := s.validateAnswerRefs(ctx, exam, req.Answers); err != nil {
		return nil, err
	}

	if err := s.attempts.UpsertAnswers(ctx, attempt, req.Answers, s.now()); err != nil {
		return nil, InternalError("save answers", err)
	}

	answered, err := s.attempts.AnsweredCount(ctx, attempt.ID)
	if err != nil {
		return nil, InternalError("count answers", err)
	}

	deadline := AttemptDeadline(attempt.StartedAt, exam.DurationMinutes, exam.EndsAt)
	return &SaveAnswersResponse{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		AnsweredCount:    answered,
		DeadlineAt:       deadline,
		RemainingSeconds: RemainingSeconds(deadline, s.now()),
	}, nil
}

// Heartbeat reports telemetry for an in-progress attempt. Non-in-progress
// attempts get a no-op status echo. Threshold breaches force an auto-submit
// with reason ANTI_CHEAT_TRIGGER.
func (s *AttemptService) Heartbeat(ctx context.Context, studentID, attemptID uuid.UUID, telemetry model.HeartbeatRequest, client ClientContext) (*HeartbeatResponse, error) {
	attempt, exam, err := s.getOwnedAttemptWithExam(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != model.AttemptStatusInProgress {
		result, err := s.existingEvaluation(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		return &HeartbeatResponse{AttemptID: attempt.ID, Status: attempt.Status, Result: result}, nil
	}

	outcome, err := s.autoSubmitIfExpired(ctx, attempt, exam, client)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return &HeartbeatResponse{
			AttemptID:     attempt.ID,
			Status:        outcome.Status,
			AutoSubmitted: true,
			Reason:        outcome.Reason,
			Result:        outcome.Result,
		}, nil
	}

	s.enqueueTelemetry(ctx, attempt, telemetry)
	s.recordFingerprintEvents(ctx, attempt, client)

	forceSubmit, findings := EvaluateHeartbeat(telemetry)
	for _, f := range findings {
		s.logSecurityEvent(ctx, attempt, f.EventType, f.RiskScore, marshalEventData(f.EventData))
	}

	if forceSubmit {
		eventData := map[string]any{
			"tab_switch_count":       telemetry.TabSwitchCount,
			"fullscreen_exit_count":  telemetry.FullscreenExitCount,
			"copy_paste_count":       telemetry.CopyPasteCount,
			"devtools_open":          telemetry.DevToolsOpen,
			"multiple_face_detected": telemetry.MultipleFaceDetected,
		}
		forced, err := s.forceAutoSubmit(ctx, attempt, exam, client, ReasonAntiCheatTrigger, eventData)
		if err != nil {
			return nil, err
		}
		return &HeartbeatResponse{
			AttemptID:     attempt.ID,
			Status:        forced.Status,
			AutoSubmitted: forced.AutoSubmitted,
			Reason:        forced.Reason,
			Result:        forced.Result,
		}, nil
	}

	deadline := AttemptDeadline(attempt.StartedAt, exam.DurationMinutes, exam.EndsAt)
	return &HeartbeatResponse{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		DeadlineAt:       deadline,
		RemainingSeconds: RemainingSeconds(deadline, s.now()),
	}, nil
}

// RecordSecurityEvent appends one discrete event; severe event types force
// an immediate auto-submit while the attempt is in progress.
func (s *AttemptService) RecordSecurityEvent(ctx context.Context, studentID, attemptID uuid.UUID, req model.RecordSecurityEventRequest, client ClientContext) (*SecurityEventResponse, error) {
	attempt, exam, err := s.getOwnedAttemptWithExam(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	s.recordFingerprintEvents(ctx, attempt, client)

	risk := DefaultRiskScore(req.EventType)
	if req.RiskScore != nil {
		risk = *req.RiskScore
	}
	event := s.logSecurityEvent(ctx, attempt, req.EventType, risk, req.EventData)

	if attempt.Status == model.AttemptStatusInProgress && IsSevereEvent(req.EventType) {
		var eventData map[string]any
		if len(req.EventData) > 0 {
			_ = json.Unmarshal(req.EventData, &eventData)
		}
		forced, err := s.forceAutoSubmit(ctx, attempt, exam, client, ReasonAntiCheatTrigger, eventData)
		if err != nil {
			return nil, err
		}
		return &SecurityEventResponse{
			EventID:       event.ID,
			AttemptID:     attempt.ID,
			EventType:     event.EventType,
			RiskScore:     event.RiskScore,
			OccurredAt:    event.OccurredAt,
			AutoSubmitted: forced.AutoSubmitted,
			Submit:        forced,
		}, nil
	}

	return &SecurityEventResponse{
		EventID:    event.ID,
		AttemptID:  attempt.ID,
		EventType:  event.EventType,
		RiskScore:  event.RiskScore,
		OccurredAt: event.OccurredAt,
	}, nil
}

// SubmitExam finalizes an attempt: transitions to SUBMITTED, evaluates,
// transitions to EVALUATED and attempts certificate issuance. Submitting an
// already-terminal attempt returns the existing result without
// re-evaluation, so retries are safe.
func (s *AttemptService) SubmitExam(ctx context.Context, studentID, attemptID uuid.UUID, req model.SubmitAttemptRequest, client ClientContext) (*SubmitOutcome, error) {
	attempt, exam, err := s.getOwnedAttemptWithExam(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != model.AttemptStatusInProgress {
		return s.terminalOutcome(ctx, attempt)
	}

	outcome, err := s.autoSubmitIfExpired(ctx, attempt, exam, client)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return outcome, nil
	}

	s.recordFingerprintEvents(ctx, attempt, client)

	now := s.now()
	elapsed := int(now.Sub(attempt.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	timeSpent := elapsed
	// The client may claim less time than wall clock, never more.
	if req.TimeSpentSeconds != nil && *req.TimeSpentSeconds < elapsed {
		timeSpent = *req.TimeSpentSeconds
	}

	won, err := s.attempts.TransitionStatus(ctx, attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusSubmitted, &now, &timeSpent)
	if err != nil {
		return nil, InternalError("submit attempt", err)
	}
	if !won {
		// A concurrent submit or forced auto-submit got there first.
		return s.rereadTerminalOutcome(ctx, studentID, attempt.ID)
	}

	evaluation, err := s.evaluateAndPersist(ctx, attempt, exam, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.attempts.TransitionStatus(ctx, attempt.ID, model.AttemptStatusSubmitted, model.AttemptStatusEvaluated, nil, nil); err != nil {
		return nil, InternalError("finalize attempt", err)
	}

	return &SubmitOutcome{
		AttemptID: attempt.ID,
		Status:    model.AttemptStatusEvaluated,
		Result:    evaluation,
	}, nil
}

// GetAttemptState is the read path. An expired in-progress attempt is
// opportunistically auto-submitted before the snapshot is taken.
func (s *AttemptService) GetAttemptState(ctx context.Context, studentID, attemptID uuid.UUID, client ClientContext) (*AttemptStateResponse, error) {
	attempt, exam, err := s.getOwnedAttemptWithExam(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptStatusInProgress {
		if _, err := s.autoSubmitIfExpired(ctx, attempt, exam, client); err != nil {
			return nil, err
		}
		s.recordFingerprintEvents(ctx, attempt, client)

		// Re-read: the expiry path may have advanced the status.
		attempt, err = s.attempts.GetOwned(ctx, attemptID, studentID)
		if err != nil {
			return nil, InternalError("reload attempt", err)
		}
		if attempt == nil {
			return nil, NotFoundError("attempt not found")
		}
	}

	answered, err := s.attempts.AnsweredCount(ctx, attempt.ID)
	if err != nil {
		return nil, InternalError("count answers", err)
	}

	result, err := s.existingEvaluation(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	deadline := AttemptDeadline(attempt.StartedAt, exam.DurationMinutes, exam.EndsAt)
	return &AttemptStateResponse{
		AttemptID:        attempt.ID,
		ExamID:           attempt.ExamID,
		Status:           attempt.Status,
		StartedAt:        attempt.StartedAt,
		SubmittedAt:      attempt.SubmittedAt,
		DeadlineAt:       deadline,
		RemainingSeconds: RemainingSeconds(deadline, s.now()),
		AnsweredCount:    answered,
		Result:           result,
	}, nil
}

// ListResults returns the caller's evaluated results, newest first.
func (s *AttemptService) ListResults(ctx context.Context, studentID uuid.UUID) ([]model.StudentResultRow, error) {
	rows, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, InternalError("list results", err)
	}
	return rows, nil
}

// ForceExpireAttempt closes one deadline-expired attempt. Used by the
// expiry worker; a no-op when the attempt already left IN_PROGRESS.
func (s *AttemptService) ForceExpireAttempt(ctx context.Context, attempt *model.ExamAttempt) (*SubmitOutcome, error) {
	exam, err := s.getExamOrFail(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	return s.forceAutoSubmit(ctx, attempt, exam, ClientContext{}, ReasonTimeLimitReached, nil)
}

// ExpiredAttempts exposes the expiry scan for the worker.
func (s *AttemptService) ExpiredAttempts(ctx context.Context, limit int) ([]model.ExamAttempt, error) {
	return s.attempts.ListExpiredInProgress(ctx, s.now(), limit)
}

// ─── Internal helpers ───────────────────────────────────────────────────────

func (s *AttemptService) getExamOrFail(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, InternalError("get exam", err)
	}
	if exam == nil {
		return nil, NotFoundError("exam not found")
	}
	return exam, nil
}

func (s *AttemptService) getOwnedAttemptWithExam(ctx context.Context, studentID, attemptID uuid.UUID) (*model.ExamAttempt, *model.Exam, error) {
	attempt, err := s.attempts.GetOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, nil, InternalError("get attempt", err)
	}
	if attempt == nil {
		return nil, nil, NotFoundError("attempt not found")
	}
	exam, err := s.getExamOrFail(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, exam, nil
}

func (s *AttemptService) validateExamWindowForStart(exam *model.Exam) error {
	if exam.Status != model.ExamStatusPublished {
		return BadRequestError("exam is not available for attempts")
	}
	now := s.now()
	if exam.StartsAt != nil && now.Before(*exam.StartsAt) {
		return BadRequestError("exam has not started yet")
	}
	if exam.EndsAt != nil && now.After(*exam.EndsAt) {
		return BadRequestError("exam time window has ended")
	}
	return nil
}

// studentQuestions loads the exam's question set stripped of correctness
// flags, applying the exam's shuffle settings.
func (s *AttemptService) studentQuestions(ctx context.Context, exam *model.Exam) ([]model.StudentQuestion, error) {
	questions, err := s.exams.ListQuestions(ctx, exam.ID)
	if err != nil {
		return nil, InternalError("list questions", err)
	}
	if len(questions) == 0 {
		return nil, BadRequestError("exam has no questions")
	}

	prepared := make([]model.StudentQuestion, 0, len(questions))
	for _, q := range questions {
		opts := make([]model.StudentOption, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, model.StudentOption{
				OptionID:   o.ID,
				OptionKey:  o.OptionKey,
				OptionText: o.OptionText,
			})
		}
		if exam.ShuffleOptions {
			opts = shuffledCopy(s.shuffler, opts)
		}
		prepared = append(prepared, model.StudentQuestion{
			QuestionID:   q.ID,
			QuestionText: q.QuestionText,
			Marks:        q.Marks,
			Options:      opts,
		})
	}

	if exam.ShuffleQuestions {
		prepared = shuffledCopy(s.shuffler, prepared)
	}
	return prepared, nil
}

// validateAnswerRefs rejects duplicate question ids and any question or
// option that does not belong to this exam.
func (s *AttemptService) validateAnswerRefs(ctx context.Context, exam *model.Exam, answers []model.AnswerUpsert) error {
	questions, err := s.exams.ListQuestions(ctx, exam.ID)
	if err != nil {
		return InternalError("list questions", err)
	}

	optionsByQuestion := make(map[uuid.UUID]map[uuid.UUID]bool, len(questions))
	for _, q := range questions {
		opts := make(map[uuid.UUID]bool, len(q.Options))
		for _, o := range q.Options {
			opts[o.ID] = true
		}
		optionsByQuestion[q.ID] = opts
	}

	seen := make(map[uuid.UUID]bool, len(answers))
	for _, a := range answers {
		if seen[a.QuestionID] {
			return BadRequestError("duplicate question_id values are not allowed in one save request")
		}
		seen[a.QuestionID] = true

		opts, ok := optionsByQuestion[a.QuestionID]
		if !ok {
			return BadRequestError("one or more question_id values do not belong to this exam")
		}
		if a.SelectedOptionID != nil && !opts[*a.SelectedOptionID] {
			return BadRequestError("selected_option_id does not belong to the referenced question")
		}
	}
	return nil
}

// autoSubmitIfExpired force-submits the attempt when its deadline has
// passed. Returns nil when the attempt is still within its deadline (or no
// longer in progress).
func (s *AttemptService) autoSubmitIfExpired(ctx context.Context, attempt *model.ExamAttempt, exam *model.Exam, client ClientContext) (*SubmitOutcome, error) {
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, nil
	}
	deadline := AttemptDeadline(attempt.StartedAt, exam.DurationMinutes, exam.EndsAt)
	if !s.now().After(deadline) {
		return nil, nil
	}
	return s.forceAutoSubmit(ctx, attempt, exam, client, ReasonTimeLimitReached, nil)
}

// forceAutoSubmit is the shared path for all forced terminations. It is a
// no-op returning the existing state when the attempt already left
// IN_PROGRESS, and the CAS transition guards the race where two forcers
// arrive together.
func (s *AttemptService) forceAutoSubmit(ctx context.Context, attempt *model.ExamAttempt, exam *model.Exam, client ClientContext, reason string, eventData map[string]any) (*SubmitOutcome, error) {
	if attempt.Status != model.AttemptStatusInProgress {
		return s.terminalOutcome(ctx, attempt)
	}

	s.recordFingerprintEvents(ctx, attempt, client)

	now := s.now()
	elapsed := int(now.Sub(attempt.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	won, err := s.attempts.TransitionStatus(ctx, attempt.ID, model.AttemptStatusInProgress, model.AttemptStatusSubmitted, &now, &elapsed)
	if err != nil {
		return nil, InternalError("auto-submit attempt", err)
	}
	if !won {
		return s.rereadTerminalOutcome(ctx, attempt.StudentID, attempt.ID)
	}

	data := map[string]any{"reason": reason}
	for k, v := range eventData {
		data[k] = v
	}
	s.logSecurityEvent(ctx, attempt, model.EventAutoSubmit, 10, marshalEventData(data))

	evaluation, err := s.evaluateAndPersist(ctx, attempt, exam, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.attempts.TransitionStatus(ctx, attempt.ID, model.AttemptStatusSubmitted, model.AttemptStatusEvaluated, nil, nil); err != nil {
		return nil, InternalError("finalize attempt", err)
	}
	attempt.Status = model.AttemptStatusEvaluated

	return &SubmitOutcome{
		AttemptID:     attempt.ID,
		Status:        model.AttemptStatusEvaluated,
		AutoSubmitted: true,
		Reason:        reason,
		Result:        evaluation,
	}, nil
}

// evaluateAndPersist grades the attempt, upserts the result row and runs
// the certificate issuance gate. The upsert tolerates re-evaluation even
// though status guards make a second evaluation unreachable in practice.
func (s *AttemptService) evaluateAndPersist(ctx context.Context, attempt *model.ExamAttempt, exam *model.Exam, now time.Time) (*EvaluationResult, error) {
	keys, err := s.exams.QuestionKeys(ctx, exam.ID)
	if err != nil {
		return nil, InternalError("load question keys", err)
	}

	selected, err := s.attempts.SelectedOptions(ctx, attempt.ID)
	if err != nil {
		return nil, InternalError("load answers", err)
	}

	score, err := ScoreAttempt(keys, selected, exam.TotalMarks)
	if err != nil {
		return nil, err
	}

	result := &model.ExamResult{
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		StudentID:       attempt.StudentID,
		TotalQuestions:  score.TotalQuestions,
		CorrectAnswers:  score.CorrectAnswers,
		WrongAnswers:    score.WrongAnswers,
		Unanswered:      score.Unanswered,
		MaxMarks:        score.MaxMarks,
		MarksObtained:   score.MarksObtained,
		ScorePercentage: score.ScorePercentage,
		Passed:          score.Passed,
		EvaluatedAt:     now,
	}
	if err := s.results.Upsert(ctx, result); err != nil {
		return nil, InternalError("persist result", err)
	}

	certificate, err := s.certs.IssueIfEligible(ctx, CertificateIssueInput{
		ResultID:        result.ID,
		ExamID:          attempt.ExamID,
		StudentID:       attempt.StudentID,
		CourseID:        exam.CourseID,
		FacultyID:       exam.CreatedByFaculty,
		ScorePercentage: score.ScorePercentage,
		PassedAt:        now,
	})
	if err != nil {
		return nil, err
	}

	return &EvaluationResult{
		ResultID:        result.ID,
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		StudentID:       attempt.StudentID,
		TotalQuestions:  score.TotalQuestions,
		CorrectAnswers:  score.CorrectAnswers,
		WrongAnswers:    score.WrongAnswers,
		Unanswered:      score.Unanswered,
		MaxMarks:        score.MaxMarks,
		MarksObtained:   score.MarksObtained,
		ScorePercentage: score.ScorePercentage,
		Passed:          score.Passed,
		EvaluatedAt:     now,
		Certificate:     certificate,
	}, nil
}

// terminalOutcome builds the idempotent response for an attempt that
// already left IN_PROGRESS.
func (s *AttemptService) terminalOutcome(ctx context.Context, attempt *model.ExamAttempt) (*SubmitOutcome, error) {
	result, err := s.existingEvaluation(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	return &SubmitOutcome{
		AttemptID: attempt.ID,
		Status:    attempt.Status,
		Result:    result,
	}, nil
}

// rereadTerminalOutcome handles the CAS-loser path: reload the attempt and
// report whatever the winner produced.
func (s *AttemptService) rereadTerminalOutcome(ctx context.Context, studentID, attemptID uuid.UUID) (*SubmitOutcome, error) {
	attempt, err := s.attempts.GetOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, InternalError("reload attempt", err)
	}
	if attempt == nil {
		return nil, NotFoundError("attempt not found")
	}
	return s.terminalOutcome(ctx, attempt)
}

func (s *AttemptService) existingEvaluation(ctx context.Context, attemptID uuid.UUID) (*EvaluationResult, error) {
	result, err := s.results.GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, InternalError("get result", err)
	}
	if result == nil {
		return nil, nil
	}

	certificate, err := s.certs.SummaryByResult(ctx, result.ID)
	if err != nil {
		return nil, err
	}

	return &EvaluationResult{
		ResultID:        result.ID,
		AttemptID:       result.AttemptID,
		ExamID:          result.ExamID,
		StudentID:       result.StudentID,
		TotalQuestions:  result.TotalQuestions,
		CorrectAnswers:  result.CorrectAnswers,
		WrongAnswers:    result.WrongAnswers,
		Unanswered:      result.Unanswered,
		MaxMarks:        result.MaxMarks,
		MarksObtained:   result.MarksObtained,
		ScorePercentage: result.ScorePercentage,
		Passed:          result.Passed,
		EvaluatedAt:     result.EvaluatedAt,
		Certificate:     certificate,
	}, nil
}

// recordFingerprintEvents logs IP/user-agent mismatches against the
// attempt's start-time baseline. Logging failures must not disturb the
// caller's operation.
func (s *AttemptService) recordFingerprintEvents(ctx context.Context, attempt *model.ExamAttempt, client ClientContext) {
	for _, f := range FingerprintFindings(attempt.IPAddress, attempt.UserAgent, client.IPAddress, client.UserAgent) {
		s.logSecurityEvent(ctx, attempt, f.EventType, f.RiskScore, marshalEventData(f.EventData))
	}
}

func (s *AttemptService) logSecurityEvent(ctx context.Context, attempt *model.ExamAttempt, eventType model.SecurityEventType, risk int, data json.RawMessage) *model.AttemptSecurityEvent {
	event := &model.AttemptSecurityEvent{
		AttemptID:  attempt.ID,
		StudentID:  attempt.StudentID,
		EventType:  eventType,
		EventData:  data,
		RiskScore:  risk,
		OccurredAt: s.now(),
	}

	if err := s.events.Append(ctx, event); err != nil {
		s.log.Error().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Str("event_type", string(eventType)).
			Msg("Failed to append security event")
		return event
	}

	if s.monitor != nil {
		s.monitor.PublishSecurityEvent(ctx, attempt.ExamID, event)
	}
	return event
}

func (s *AttemptService) enqueueTelemetry(ctx context.Context, attempt *model.ExamAttempt, telemetry model.HeartbeatRequest) {
	if s.telemetry == nil {
		return
	}
	snapshot := TelemetrySnapshot{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		StudentID: attempt.StudentID,
		Telemetry: telemetry,
		Timestamp: s.now().Unix(),
	}
	if err := s.telemetry.EnqueueHeartbeat(ctx, snapshot); err != nil {
		s.log.Warn().Err(err).Msg("Failed to enqueue telemetry snapshot")
	}
}
