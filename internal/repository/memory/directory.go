package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// Directory is an in-memory user directory.
type Directory struct {
	mu    sync.RWMutex
	users map[int]model.User
}

// NewDirectory creates a directory holding users.
func NewDirectory(users ...model.User) *Directory {
	d := &Directory{users: make(map[int]model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *Directory) GetNames(_ context.Context, ids []int) (map[int]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u.DisplayName()
		}
	}
	return out, nil
}

// Buffer is an in-memory answer buffer.
type Buffer struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[uuid.UUID]int
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{answers: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (b *Buffer) Put(_ context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.answers[attemptID] == nil {
		b.answers[attemptID] = make(map[uuid.UUID]int)
	}
	b.answers[attemptID][questionID] = selectedIndex
	return nil
}

func (b *Buffer) Load(_ context.Context, attemptID uuid.UUID) (map[uuid.UUID]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uuid.UUID]int, len(b.answers[attemptID]))
	for k, v := range b.answers[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (b *Buffer) Clear(_ context.Context, attemptID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.answers, attemptID)
	return nil
}

// Publisher records published monitor events.
type Publisher struct {
	mu     sync.Mutex
	events []model.MonitorEvent
}

func (p *Publisher) Publish(_ context.Context, ev model.MonitorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []model.MonitorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.MonitorEvent(nil), p.events...)
}
