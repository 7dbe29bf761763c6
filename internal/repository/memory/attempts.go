package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
)

type answerKey struct {
	attemptID  uuid.UUID
	questionID uuid.UUID
}

// Attempts is an in-memory attempt store. One mutex serialises every write,
// which gives CreateOrGet and Finalize the same atomicity as the SQL versions.
type Attempts struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.Attempt
	answers map[answerKey]model.Answer

	// FailFinalize, when set, makes Finalize fail after the compare-and-swap
	// and roll everything back.
	FailFinalize error
}

// NewAttempts creates an empty store.
func NewAttempts() *Attempts {
	return &Attempts{
		byID:    make(map[uuid.UUID]*model.Attempt),
		answers: make(map[answerKey]model.Answer),
	}
}

func (s *Attempts) CreateOrGet(_ context.Context, sessionID uuid.UUID, studentID int, startedAt time.Time) (*model.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.SessionID == sessionID && a.StudentID == studentID {
			cp := *a
			return &cp, false, nil
		}
	}
	a := &model.Attempt{
		ID:        uuid.New(),
		SessionID: sessionID,
		StudentID: studentID,
		StartedAt: startedAt,
	}
	s.byID[a.ID] = a
	cp := *a
	return &cp, true, nil
}

// Put stores an attempt as is, for seeding tests.
func (s *Attempts) Put(a model.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = &a
}

func (s *Attempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (s *Attempts) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Answer
	for k, a := range s.answers {
		if k.attemptID == attemptID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Attempts) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error {
	return s.SaveAnswers(ctx, []model.Answer{{AttemptID: attemptID, QuestionID: questionID, SelectedChoiceIndex: selectedIndex}})
}

// SaveAnswers mirrors the SQL upsert: rows of finished attempts are dropped.
func (s *Attempts) SaveAnswers(_ context.Context, answers []model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	written := 0
	for _, a := range answers {
		at, ok := s.byID[a.AttemptID]
		if !ok || at.IsFinished() {
			continue
		}
		k := answerKey{a.AttemptID, a.QuestionID}
		prev, exists := s.answers[k]
		if !exists {
			prev = model.Answer{ID: uuid.New(), AttemptID: a.AttemptID, QuestionID: a.QuestionID}
		}
		prev.SelectedChoiceIndex = a.SelectedChoiceIndex
		s.answers[k] = prev
		written++
	}
	if written == 0 && len(answers) > 0 {
		return repository.ErrAttemptFinished
	}
	return nil
}

func (s *Attempts) Finalize(_ context.Context, attemptID uuid.UUID, answers []model.Answer, score float64, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[attemptID]
	if !ok || a.IsFinished() {
		return repository.ErrAttemptFinished
	}
	if s.FailFinalize != nil {
		return s.FailFinalize
	}

	for _, ans := range answers {
		k := answerKey{attemptID, ans.QuestionID}
		prev, exists := s.answers[k]
		if !exists {
			prev = model.Answer{ID: uuid.New(), AttemptID: attemptID, QuestionID: ans.QuestionID}
		}
		prev.SelectedChoiceIndex = ans.SelectedChoiceIndex
		prev.IsCorrect = ans.IsCorrect
		s.answers[k] = prev
	}
	fin := finishedAt
	sc := score
	a.FinishedAt = &fin
	a.Score = &sc
	return nil
}

func (s *Attempts) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return s.list(func(a *model.Attempt) bool { return a.SessionID == sessionID }), nil
}

func (s *Attempts) ListUnfinishedBySession(_ context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return s.list(func(a *model.Attempt) bool { return a.SessionID == sessionID && !a.IsFinished() }), nil
}

func (s *Attempts) list(keep func(*model.Attempt) bool) []model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, a := range s.byID {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (s *Attempts) countBySession(sessionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.byID {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n
}
