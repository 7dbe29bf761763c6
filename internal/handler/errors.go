package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	"github.com/rs/zerolog"
)

// errorMapping pairs a domain error with its HTTP status and response code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// Order matters only for wrapped chains that match several entries.
var errorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrForbidden, http.StatusForbidden, response.ErrForbidden},
	{service.ErrConflict, http.StatusConflict, response.ErrConflict},
	{service.ErrInvalidDuration, http.StatusUnprocessableEntity, response.ErrInvalidDuration},
	{service.ErrInvalidTimestamp, http.StatusUnprocessableEntity, response.ErrInvalidTimestamp},
	{service.ErrEmptyQuiz, http.StatusUnprocessableEntity, response.ErrEmptyQuiz},
	{service.ErrInactive, http.StatusGone, response.ErrSessionInactive},
	{service.ErrNotOpen, http.StatusForbidden, response.ErrSessionNotOpen},
	{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
	{service.ErrTimeExpired, http.StatusGone, response.ErrTimeExpired},
	{service.ErrStorageFailure, http.StatusServiceUnavailable, response.ErrStorageFailure},
}

// classify resolves err to its HTTP status and response code.
// Unknown errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWithError writes the response for a service error. Internal errors are
// logged and their text is kept out of the response.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if code == response.ErrInternal || code == response.ErrStorageFailure {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		response.Fail(c, status, code)
		return
	}
	response.FailWithDetail(c, status, code, err.Error())
}
