package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/credentia/certportal-backend/internal/middleware"
	"github.com/credentia/certportal-backend/internal/model"
	"github.com/credentia/certportal-backend/internal/response"
	"github.com/credentia/certportal-backend/internal/service"
	"github.com/credentia/certportal-backend/internal/validator"
)

// AttemptHandler handles student exam-attempt endpoints.
type AttemptHandler struct {
	attempts *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// failFromService maps a service error to the HTTP status and error code.
func failFromService(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	switch svcErr.Kind {
	case service.KindNotFound:
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, svcErr.Message)
	case service.KindConflict:
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, svcErr.Message)
	case service.KindBadRequest:
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrExamNotAvailable, svcErr.Message)
	case service.KindUnprocessable:
		response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrUnprocessable, svcErr.Message)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Starts a new timed attempt and returns the question set.
func (h *AttemptHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	started, err := h.attempts.StartExam(c.Request.Context(), claims.UserID, examID, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": started})
}

// SaveAnswers godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
// Upserts answers for an in-progress attempt. Idempotent per question.
func (h *AttemptHandler) SaveAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	saved, err := h.attempts.SaveAnswers(c.Request.Context(), claims.UserID, attemptID, req, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, saved)
}

// Heartbeat godoc
// POST /api/v1/student/attempts/:attempt_id/heartbeat
// Receives anti-cheat telemetry; may force-submit the attempt.
func (h *AttemptHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.HeartbeatRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	beat, err := h.attempts.Heartbeat(c.Request.Context(), claims.UserID, attemptID, req, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, beat)
}

// RecordSecurityEvent godoc
// POST /api/v1/student/attempts/:attempt_id/security-events
// Appends one discrete anti-cheat event; severe events force-submit.
func (h *AttemptHandler) RecordSecurityEvent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordSecurityEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	recorded, err := h.attempts.RecordSecurityEvent(c.Request.Context(), claims.UserID, attemptID, req, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, recorded)
}

// SubmitExam godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Finalizes and grades the attempt. Safe to retry.
func (h *AttemptHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.attempts.SubmitExam(c.Request.Context(), claims.UserID, attemptID, req, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// GetAttemptState godoc
// GET /api/v1/student/attempts/:attempt_id
// Snapshot of the attempt: status, remaining time, answered count, result.
func (h *AttemptHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attempts.GetAttemptState(c.Request.Context(), claims.UserID, attemptID, middleware.ClientContextFrom(c))
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// ListResults godoc
// GET /api/v1/student/results
// The caller's evaluated results, newest first.
func (h *AttemptHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.attempts.ListResults(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	if results == nil {
		results = []model.StudentResultRow{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}
