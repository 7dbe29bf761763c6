package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/middleware"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	"github.com/qcmhub/qcm-backend/internal/validator"
	"github.com/rs/zerolog"
)

// StudentPortalHandler handles student-facing endpoints (join, resume, answer, submit).
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	attemptService *service.AttemptService
	scoringService *service.ScoringService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	attemptService *service.AttemptService,
	scoringService *service.ScoringService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		attemptService: attemptService,
		scoringService: scoringService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// ActiveExams godoc
// GET /api/v1/student/exams/active
// Sessions open right now that the student's scope may join.
func (h *StudentPortalHandler) ActiveExams(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.ListOpenForStudent(c.Request.Context(), caller)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// JoinExam godoc
// POST /api/v1/student/exams/join
// Joins by code or resumes the existing attempt (idempotent).
// The returned exam_config tells the client which question to show and for how long.
func (h *StudentPortalHandler) JoinExam(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.JoinExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.JoinOrResume(c.Request.Context(), caller, req.Code)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetAttemptState godoc
// GET /api/v1/student/attempts/:id
// Covers page reloads: the reconstructed clock plus the answers saved so far.
func (h *StudentPortalHandler) GetAttemptState(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), caller, id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// PUT /api/v1/student/attempts/:id/answers
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	// The uuid binding tag has already vetted the format.
	questionID := uuid.MustParse(req.QuestionID)

	if err := h.attemptService.SaveAnswer(c.Request.Context(), caller, id, questionID, *req.SelectedIndex); err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// SubmitExam godoc
// POST /api/v1/student/attempts/:id/submit
// Grades the attempt and finalizes it; a second submit gets ALREADY_SUBMITTED.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// An empty body submits only what was saved earlier.
	var req model.SubmitExamRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.scoringService.Submit(c.Request.Context(), caller, id, req.Answers)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
