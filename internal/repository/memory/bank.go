package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// Bank is an in-memory question bank.
type Bank struct {
	mu   sync.RWMutex
	qcms map[uuid.UUID]*model.QCM
}

// NewBank creates a bank holding qcms.
func NewBank(qcms ...*model.QCM) *Bank {
	b := &Bank{qcms: make(map[uuid.UUID]*model.QCM)}
	for _, q := range qcms {
		b.Add(q)
	}
	return b
}

// Add stores q, assigning ids where missing.
func (b *Bank) Add(q *model.QCM) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	for i := range q.Questions {
		if q.Questions[i].ID == uuid.Nil {
			q.Questions[i].ID = uuid.New()
		}
		q.Questions[i].QCMID = q.ID
	}
	b.qcms[q.ID] = q
}

func (b *Bank) GetQCM(_ context.Context, id uuid.UUID) (*model.QCM, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.qcms[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return q, nil
}

func (b *Bank) GetPayload(ctx context.Context, id uuid.UUID) (*model.QCMPayload, error) {
	q, err := b.GetQCM(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.Payload(), nil
}

func (b *Bank) GetAnswerKey(ctx context.Context, id uuid.UUID) (map[uuid.UUID]int, error) {
	q, err := b.GetQCM(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.AnswerKey(), nil
}
