// Package memory provides in-memory implementations of the storage interfaces
// the services consume. They honour the same uniqueness and compare-and-swap
// guarantees as the PostgreSQL repositories and are used by tests.
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

// Sessions is an in-memory session store.
type Sessions struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]model.ExamSession
	titles   map[uuid.UUID]string
	attempts *Attempts
}

// NewSessions creates an empty store. attempts, when set, supplies attempt
// counts and blocks deletes of joined sessions.
func NewSessions(attempts *Attempts) *Sessions {
	return &Sessions{
		byID:     make(map[uuid.UUID]model.ExamSession),
		titles:   make(map[uuid.UUID]string),
		attempts: attempts,
	}
}

// SetTitle records the question set title shown in listings.
func (s *Sessions) SetTitle(qcmID uuid.UUID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[qcmID] = title
}

func (s *Sessions) Create(_ context.Context, es *model.ExamSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if es.IsActive {
		for _, other := range s.byID {
			if other.IsActive && other.Code == es.Code {
				return repository.ErrCodeTaken
			}
		}
	}
	if es.ID == uuid.Nil {
		es.ID = uuid.New()
	}
	if es.CreatedAt.IsZero() {
		es.CreatedAt = time.Now()
	}
	s.byID[es.ID] = *es
	return nil
}

// Put stores a session as is, for seeding tests.
func (s *Sessions) Put(es model.ExamSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[es.ID] = es
}

func (s *Sessions) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	es, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &es, nil
}

func (s *Sessions) GetByCode(_ context.Context, code string) (*model.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.ExamSession
	for _, es := range s.byID {
		if es.Code != code {
			continue
		}
		es := es
		if best == nil ||
			(es.IsActive && !best.IsActive) ||
			(es.IsActive == best.IsActive && es.CreatedAt.After(best.CreatedAt)) {
			best = &es
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	return best, nil
}

func (s *Sessions) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, es := range s.byID {
		if es.IsActive && es.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sessions) DeleteIfNoAttempts(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	if s.attempts != nil && s.attempts.countBySession(id) > 0 {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

func (s *Sessions) ListByOwner(_ context.Context, ownerID int) ([]model.ExamSessionSummary, error) {
	return s.summaries(func(es model.ExamSession) bool { return es.OwnerID == ownerID }), nil
}

func (s *Sessions) ListAll(_ context.Context, limit, offset int) ([]model.ExamSessionSummary, int, error) {
	all := s.summaries(func(model.ExamSession) bool { return true })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Sessions) ListOpen(_ context.Context, at time.Time) ([]model.ExamSessionSummary, error) {
	return s.summaries(func(es model.ExamSession) bool {
		return es.IsActive && !at.Before(es.StartTime) && !at.After(es.EndTime)
	}), nil
}

func (s *Sessions) summaries(keep func(model.ExamSession) bool) []model.ExamSessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ExamSessionSummary
	for _, es := range s.byID {
		if !keep(es) {
			continue
		}
		row := model.ExamSessionSummary{ExamSession: es, QCMTitle: s.titles[es.QCMID]}
		if s.attempts != nil {
			row.StudentCount = s.attempts.countBySession(es.ID)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}
