package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/rs/zerolog"
)

// AttemptService is the attempt tracker: join/resume, reload and incremental saves.
type AttemptService struct {
	registry  *ExamSessionService
	attempts  AttemptStore
	bank      QuestionBank
	buffer    AnswerBuffer
	publisher MonitorPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttemptService creates a new AttemptService. buffer and publisher may be nil.
func NewAttemptService(
	registry *ExamSessionService,
	attempts AttemptStore,
	bank QuestionBank,
	buffer AnswerBuffer,
	publisher MonitorPublisher,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		registry:  registry,
		attempts:  attempts,
		bank:      bank,
		buffer:    buffer,
		publisher: publisher,
		log:       log.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
	}
}

// JoinOrResume puts the caller into the session behind code.
// The first join creates the attempt and fixes its start time; every later
// join resumes it with the clock recomputed from that start time.
func (s *AttemptService) JoinOrResume(ctx context.Context, caller Caller, code string) (*model.JoinResult, error) {
	session, err := s.registry.LookupByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := Authorize(caller, ActionJoinSession, Resource{ScopeID: session.ScopeID}); err != nil {
		return nil, err
	}

	now := s.now()
	if !session.IsOpenAt(now) {
		return nil, fmt.Errorf("%w: window is %s to %s", ErrNotOpen,
			session.StartTime.Format(time.RFC3339), session.EndTime.Format(time.RFC3339))
	}

	payload, err := s.loadPayload(ctx, session.QCMID)
	if err != nil {
		return nil, err
	}
	if len(payload.Questions) == 0 {
		return nil, ErrEmptyQuiz
	}

	attempt, created, err := s.attempts.CreateOrGet(ctx, session.ID, caller.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	if attempt.IsFinished() {
		return nil, ErrAlreadySubmitted
	}

	clock, err := ReconstructClock(len(payload.Questions), session.DurationMinutes, attempt.StartedAt, now)
	if err != nil {
		return nil, err
	}

	evType := model.MonitorEventResumed
	if created {
		evType = model.MonitorEventJoined
	}
	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("attempt_id", attempt.ID.String()).
		Int("student_id", caller.UserID).
		Bool("resumed", !created).
		Int("index", clock.CurrentIndex).
		Msg("Attempt joined")
	s.publish(ctx, model.MonitorEvent{
		Type:      evType,
		SessionID: session.ID,
		AttemptID: attempt.ID,
		StudentID: caller.UserID,
		At:        now,
	})

	return &model.JoinResult{
		AttemptID:  attempt.ID,
		Resumed:    !created,
		QCM:        payload,
		ExamConfig: clock.Config(),
	}, nil
}

// GetAttempt looks an attempt up by id.
func (s *AttemptService) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: attempt %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// GetState returns an owned, unfinished attempt with its clock and saved answers.
func (s *AttemptService) GetState(ctx context.Context, caller Caller, id uuid.UUID) (*model.AttemptState, error) {
	attempt, session, err := s.ownedOpenAttempt(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	payload, err := s.loadPayload(ctx, session.QCMID)
	if err != nil {
		return nil, err
	}
	clock, err := ReconstructClock(len(payload.Questions), session.DurationMinutes, attempt.StartedAt, s.now())
	if err != nil {
		return nil, err
	}

	saved, err := savedAnswers(ctx, s.attempts, s.buffer, attempt.ID)
	if err != nil {
		return nil, err
	}
	answers := make(map[string]int, len(saved))
	for qid, idx := range saved {
		answers[qid.String()] = idx
	}

	return &model.AttemptState{
		Attempt:    *attempt,
		ExamConfig: clock.Config(),
		Answers:    answers,
	}, nil
}

// SaveAnswer records one selection ahead of submission. Repeated saves for the
// same question overwrite the previous choice.
func (s *AttemptService) SaveAnswer(ctx context.Context, caller Caller, attemptID uuid.UUID, questionID uuid.UUID, selectedIndex int) error {
	attempt, session, err := s.ownedOpenAttempt(ctx, caller, attemptID)
	if err != nil {
		return err
	}

	key, err := s.loadAnswerKey(ctx, session.QCMID)
	if err != nil {
		return err
	}
	if _, ok := key[questionID]; !ok {
		return fmt.Errorf("%w: question %s is not part of this session", ErrNotFound, questionID)
	}
	if _, err := ReconstructClock(len(key), session.DurationMinutes, attempt.StartedAt, s.now()); err != nil {
		return err
	}

	if s.buffer != nil {
		if err := s.buffer.Put(ctx, attempt.ID, questionID, selectedIndex); err != nil {
			return fmt.Errorf("buffer answer: %w", err)
		}
		return nil
	}

	if err := s.attempts.SaveAnswer(ctx, attempt.ID, questionID, selectedIndex); err != nil {
		if errors.Is(err, repository.ErrAttemptFinished) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// ownedOpenAttempt loads the attempt and its session, checking that the caller
// owns it and that it has not been finalized.
func (s *AttemptService) ownedOpenAttempt(ctx context.Context, caller Caller, id uuid.UUID) (*model.Attempt, *model.ExamSession, error) {
	attempt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := Authorize(caller, ActionAccessAttempt, Resource{OwnerID: attempt.StudentID}); err != nil {
		return nil, nil, err
	}
	if attempt.IsFinished() {
		return nil, nil, ErrAlreadySubmitted
	}
	session, err := s.registry.GetByID(ctx, attempt.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, session, nil
}

func (s *AttemptService) loadPayload(ctx context.Context, qcmID uuid.UUID) (*model.QCMPayload, error) {
	payload, err := s.bank.GetPayload(ctx, qcmID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: qcm %s", ErrNotFound, qcmID)
		}
		return nil, fmt.Errorf("load qcm: %w", err)
	}
	return payload, nil
}

func (s *AttemptService) loadAnswerKey(ctx context.Context, qcmID uuid.UUID) (map[uuid.UUID]int, error) {
	return loadAnswerKey(ctx, s.bank, qcmID)
}

func (s *AttemptService) publish(ctx context.Context, ev model.MonitorEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", ev.SessionID.String()).Msg("Failed to publish monitor event")
	}
}

func loadAnswerKey(ctx context.Context, bank QuestionBank, qcmID uuid.UUID) (map[uuid.UUID]int, error) {
	key, err := bank.GetAnswerKey(ctx, qcmID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: qcm %s", ErrNotFound, qcmID)
		}
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	return key, nil
}

// savedAnswers merges persisted answer rows with the not-yet-persisted buffer.
// Buffered selections are newer and win.
func savedAnswers(ctx context.Context, store AttemptStore, buffer AnswerBuffer, attemptID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := store.ListAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	merged := make(map[uuid.UUID]int, len(rows))
	for _, a := range rows {
		merged[a.QuestionID] = a.SelectedChoiceIndex
	}
	if buffer == nil {
		return merged, nil
	}
	buffered, err := buffer.Load(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load buffered answers: %w", err)
	}
	for qid, idx := range buffered {
		merged[qid] = idx
	}
	return merged, nil
}
