package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
		{fmt.Errorf("session %s: %w", "abc", service.ErrForbidden), http.StatusForbidden, response.ErrForbidden},
		{service.ErrConflict, http.StatusConflict, response.ErrConflict},
		{service.ErrInvalidDuration, http.StatusUnprocessableEntity, response.ErrInvalidDuration},
		{service.ErrInvalidTimestamp, http.StatusUnprocessableEntity, response.ErrInvalidTimestamp},
		{service.ErrEmptyQuiz, http.StatusUnprocessableEntity, response.ErrEmptyQuiz},
		{service.ErrInactive, http.StatusGone, response.ErrSessionInactive},
		{service.ErrNotOpen, http.StatusForbidden, response.ErrSessionNotOpen},
		{service.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
		{fmt.Errorf("clock: %w", service.ErrTimeExpired), http.StatusGone, response.ErrTimeExpired},
		{fmt.Errorf("finalize: %w", service.ErrStorageFailure), http.StatusServiceUnavailable, response.ErrStorageFailure},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, code := classify(tc.err)
			if status != tc.wantStatus || code != tc.wantCode {
				t.Fatalf("classify(%v) = (%d, %s), want (%d, %s)", tc.err, status, code, tc.wantStatus, tc.wantCode)
			}
		})
	}
}
