package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// TrackingService serves the owner's read-only views over a session's attempts.
// Reads take no locks and may trail concurrent submissions slightly.
type TrackingService struct {
	registry *ExamSessionService
	attempts AttemptStore
	users    UserDirectory
	now      func() time.Time
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(registry *ExamSessionService, attempts AttemptStore, users UserDirectory) *TrackingService {
	return &TrackingService{
		registry: registry,
		attempts: attempts,
		users:    users,
		now:      time.Now,
	}
}

// Track lists the unfinished attempts of a session with the time each has left.
func (s *TrackingService) Track(ctx context.Context, caller Caller, sessionID uuid.UUID) ([]model.LiveAttempt, error) {
	session, err := s.ownedSession(ctx, caller, ActionTrackSession, sessionID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListUnfinishedBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	names, err := s.names(ctx, attempts)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]model.LiveAttempt, 0, len(attempts))
	for _, a := range attempts {
		if a.IsFinished() {
			continue
		}
		rows = append(rows, LiveRow(session, a, names[a.StudentID], now))
	}
	return rows, nil
}

// LiveRow projects one unfinished attempt at now.
func LiveRow(session *model.ExamSession, a model.Attempt, name string, now time.Time) model.LiveAttempt {
	remaining := RemainingSeconds(session.DurationMinutes, a.StartedAt, now)
	status := model.LiveStatusActive
	if remaining == 0 {
		status = model.LiveStatusTimeUp
	}
	return model.LiveAttempt{
		AttemptID:        a.ID,
		StudentID:        a.StudentID,
		StudentName:      name,
		StartedAt:        a.StartedAt,
		RemainingSeconds: remaining,
		MinutesRemaining: minutesCeil(remaining),
		Status:           status,
	}
}

// Results lists every attempt of a session with its score, finished or not.
func (s *TrackingService) Results(ctx context.Context, caller Caller, sessionID uuid.UUID) ([]model.AttemptResult, error) {
	session, err := s.ownedSession(ctx, caller, ActionViewResults, sessionID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	names, err := s.names(ctx, attempts)
	if err != nil {
		return nil, err
	}

	rows := make([]model.AttemptResult, 0, len(attempts))
	for _, a := range attempts {
		status := model.AttemptStatusInProgress
		if a.IsFinished() {
			status = model.AttemptStatusFinished
		}
		rows = append(rows, model.AttemptResult{
			AttemptID:   a.ID,
			StudentID:   a.StudentID,
			StudentName: names[a.StudentID],
			Score:       a.Score,
			TotalGrade:  session.TotalGrade,
			Status:      status,
			StartedAt:   a.StartedAt,
			SubmittedAt: a.FinishedAt,
		})
	}
	return rows, nil
}

func (s *TrackingService) ownedSession(ctx context.Context, caller Caller, action Action, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(caller, action, Resource{OwnerID: session.OwnerID}); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *TrackingService) names(ctx context.Context, attempts []model.Attempt) (map[int]string, error) {
	if len(attempts) == 0 || s.users == nil {
		return map[int]string{}, nil
	}
	ids := make([]int, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.StudentID)
	}
	names, err := s.users.GetNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve names: %w", err)
	}
	return names, nil
}
