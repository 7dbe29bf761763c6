package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// SessionStore persists exam sessions. Implemented by repository.ExamSessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByCode(ctx context.Context, code string) (*model.ExamSession, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	DeleteIfNoAttempts(ctx context.Context, id uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, ownerID int) ([]model.ExamSessionSummary, error)
	ListAll(ctx context.Context, limit, offset int) ([]model.ExamSessionSummary, int, error)
	ListOpen(ctx context.Context, at time.Time) ([]model.ExamSessionSummary, error)
}

// AttemptStore persists attempts and their answers. Implemented by repository.AttemptRepository.
//
// CreateOrGet must rely on the (session_id, student_id) uniqueness constraint and
// return the existing row on conflict. Finalize must apply the null to non-null
// transition of finished_at as a compare-and-swap together with the answer rows,
// in one transaction.
type AttemptStore interface {
	CreateOrGet(ctx context.Context, sessionID uuid.UUID, studentID int, startedAt time.Time) (*model.Attempt, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
	SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error
	Finalize(ctx context.Context, attemptID uuid.UUID, answers []model.Answer, score float64, finishedAt time.Time) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error)
	ListUnfinishedBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error)
}

// QuestionBank is the read-only question set collaborator.
// Implemented by repository.QuestionRepository and its Redis decorator repository.QCMCache.
type QuestionBank interface {
	GetPayload(ctx context.Context, qcmID uuid.UUID) (*model.QCMPayload, error)
	GetAnswerKey(ctx context.Context, qcmID uuid.UUID) (map[uuid.UUID]int, error)
}

// UserDirectory resolves display names. Implemented by repository.UserRepository.
type UserDirectory interface {
	GetNames(ctx context.Context, ids []int) (map[int]string, error)
}

// AnswerBuffer holds autosaved answers ahead of persistence. Implemented by repository.AnswerBufferRepository.
type AnswerBuffer interface {
	Put(ctx context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error
	Load(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]int, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// MonitorPublisher fans out attempt lifecycle events to live views.
// Implemented by repository.MonitorRepository.
type MonitorPublisher interface {
	Publish(ctx context.Context, ev model.MonitorEvent) error
}
