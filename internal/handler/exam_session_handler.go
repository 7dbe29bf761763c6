package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/middleware"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	"github.com/qcmhub/qcm-backend/internal/validator"
	"github.com/rs/zerolog"
)

// ExamSessionHandler handles the session owner's endpoints.
type ExamSessionHandler struct {
	sessionService  *service.ExamSessionService
	trackingService *service.TrackingService
	log             zerolog.Logger
}

// NewExamSessionHandler creates a new ExamSessionHandler.
func NewExamSessionHandler(
	sessionService *service.ExamSessionService,
	trackingService *service.TrackingService,
	log zerolog.Logger,
) *ExamSessionHandler {
	return &ExamSessionHandler{
		sessionService:  sessionService,
		trackingService: trackingService,
		log:             log.With().Str("component", "exam_session_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/exams
// Schedules a session over a question set and returns it with its join code.
func (h *ExamSessionHandler) Create(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), caller, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// ListMine godoc
// GET /api/v1/exams/mine
func (h *ExamSessionHandler) ListMine(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.ListForOwner(c.Request.Context(), caller)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ListAll godoc
// GET /api/v1/exams/all?page=1&per_page=20
func (h *ExamSessionHandler) ListAll(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	sessions, pagination, err := h.sessionService.ListAll(c.Request.Context(), caller, page, perPage)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, pagination)
}

// Delete godoc
// DELETE /api/v1/exams/:id
// Only the owner may delete, and only before any student has joined.
func (h *ExamSessionHandler) Delete(c *gin.Context) {
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

	if err := h.sessionService.Delete(c.Request.Context(), caller, id); err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Exam session deleted"})
}

// Results godoc
// GET /api/v1/exams/:id/results
// Every attempt of the session with its score, finished or not.
func (h *ExamSessionHandler) Results(c *gin.Context) {
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

	results, err := h.trackingService.Results(c.Request.Context(), caller, id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// Live godoc
// GET /api/v1/exams/:id/live
// Snapshot of unfinished attempts with the time each has left.
func (h *ExamSessionHandler) Live(c *gin.Context) {
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

	rows, err := h.trackingService.Track(c.Request.Context(), caller, id)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": rows})
}
