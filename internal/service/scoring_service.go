package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ScoringService grades and finalizes attempts.
type ScoringService struct {
	attempts *AttemptService
	store    AttemptStore
	registry *ExamSessionService
	bank     QuestionBank
	buffer   AnswerBuffer
	log      zerolog.Logger
	now      func() time.Time
}

// NewScoringService creates a new ScoringService. buffer may be nil.
// Submission events go out through the attempt service's publisher.
func NewScoringService(
	attempts *AttemptService,
	store AttemptStore,
	registry *ExamSessionService,
	bank QuestionBank,
	buffer AnswerBuffer,
	log zerolog.Logger,
) *ScoringService {
	return &ScoringService{
		attempts: attempts,
		store:    store,
		registry: registry,
		bank:     bank,
		buffer:   buffer,
		log:      log.With().Str("component", "scoring_service").Logger(),
		now:      time.Now,
	}
}

// Grade is the outcome of scoring one answer set.
type Grade struct {
	Score        float64
	CorrectCount int
	Answers      []model.Answer
}

// ScoreAnswers grades selections against key. Questions absent from key are
// skipped. Each question counts once, so the score stays within [0, totalGrade].
func ScoreAnswers(key map[uuid.UUID]int, totalGrade float64, attemptID uuid.UUID, selections map[uuid.UUID]int) Grade {
	var g Grade
	if len(key) == 0 {
		return g
	}
	pointsPerQuestion := totalGrade / float64(len(key))

	g.Answers = make([]model.Answer, 0, len(selections))
	for qid, idx := range selections {
		correctIdx, ok := key[qid]
		if !ok {
			continue
		}
		isCorrect := correctIdx >= 0 && idx == correctIdx
		if isCorrect {
			g.Score += pointsPerQuestion
			g.CorrectCount++
		}
		g.Answers = append(g.Answers, model.Answer{
			AttemptID:           attemptID,
			QuestionID:          qid,
			SelectedChoiceIndex: idx,
			IsCorrect:           isCorrect,
		})
	}

	// float accumulation can overshoot by an ulp when every answer is right
	if g.Score > totalGrade {
		g.Score = totalGrade
	}
	return g
}

// Submit grades the final answer set and finalizes the attempt exactly once.
// Selections saved earlier (persisted rows, then the Redis buffer) count
// toward the score; a payload entry for the same question overrides them, and
// payload entries with a bad question id or index are skipped. The session
// window is not checked, so a student whose time ran out can still hand in
// what they have.
func (s *ScoringService) Submit(ctx context.Context, caller Caller, attemptID uuid.UUID, submitted []model.SubmittedAnswer) (*model.SubmitResult, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(caller, ActionAccessAttempt, Resource{OwnerID: attempt.StudentID}); err != nil {
		return nil, err
	}
	if attempt.IsFinished() {
		return nil, ErrAlreadySubmitted
	}

	session, err := s.registry.GetByID(ctx, attempt.SessionID)
	if err != nil {
		return nil, err
	}
	key, err := loadAnswerKey(ctx, s.bank, session.QCMID)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, ErrEmptyQuiz
	}

	selections, err := savedAnswers(ctx, s.store, s.buffer, attempt.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range submitted {
		qid, err := uuid.Parse(a.QuestionID)
		if err != nil || a.SelectedIndex < 0 {
			continue
		}
		selections[qid] = a.SelectedIndex
	}

	grade := ScoreAnswers(key, session.TotalGrade, attempt.ID, selections)
	finishedAt := s.now()

	if err := s.store.Finalize(ctx, attempt.ID, grade.Answers, grade.Score, finishedAt); err != nil {
		if errors.Is(err, repository.ErrAttemptFinished) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("%w: finalize attempt: %v", ErrStorageFailure, err)
	}

	if s.buffer != nil {
		if err := s.buffer.Clear(ctx, attempt.ID); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to clear answer buffer")
		}
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", attempt.StudentID).
		Float64("score", grade.Score).
		Int("correct", grade.CorrectCount).
		Msg("Attempt finalized")
	s.attempts.publish(ctx, model.MonitorEvent{
		Type:      model.MonitorEventSubmitted,
		SessionID: session.ID,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		At:        finishedAt,
	})

	return &model.SubmitResult{
		AttemptID:    attempt.ID,
		Score:        grade.Score,
		TotalGrade:   session.TotalGrade,
		CorrectCount: grade.CorrectCount,
		Status:       model.AttemptStatusFinished,
	}, nil
}
