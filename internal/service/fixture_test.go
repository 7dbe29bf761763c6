package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository/memory"
	"github.com/rs/zerolog"
)

const (
	professorID = 7
	studentID   = 100
)

var (
	professor = Caller{UserID: professorID, Role: model.RoleProfessor}
	student   = Caller{UserID: studentID, Role: model.RoleStudent}
)

// fixture wires every service over the in-memory stores with a frozen clock.
type fixture struct {
	now time.Time

	sessions  *memory.Sessions
	attempts  *memory.Attempts
	bank      *memory.Bank
	buffer    *memory.Buffer
	publisher *memory.Publisher
	users     *memory.Directory

	registry *ExamSessionService
	tracker  *AttemptService
	scoring  *ScoringService
	tracking *TrackingService

	qcm *model.QCM
	seq int
}

func newFixture(t *testing.T, questionCount int) *fixture {
	t.Helper()

	f := &fixture{
		now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		attempts:  memory.NewAttempts(),
		buffer:    memory.NewBuffer(),
		publisher: &memory.Publisher{},
		users: memory.NewDirectory(
			model.User{ID: studentID, FirstName: "Lucas", LastName: "Bernard", Role: model.RoleStudent},
			model.User{ID: studentID + 1, FirstName: "Emma", LastName: "Dubois", Role: model.RoleStudent},
		),
	}
	f.sessions = memory.NewSessions(f.attempts)
	f.qcm = buildQCM(questionCount)
	f.bank = memory.NewBank(f.qcm)

	cfg := &config.Config{
		Location:              time.UTC,
		MinSecondsPerQuestion: 10,
		DefaultTotalGrade:     20,
	}
	log := zerolog.Nop()

	f.registry = NewExamSessionService(f.sessions, f.bank, cfg, log)
	f.tracker = NewAttemptService(f.registry, f.attempts, f.bank, f.buffer, f.publisher, log)
	f.scoring = NewScoringService(f.tracker, f.attempts, f.registry, f.bank, f.buffer, log)
	f.tracking = NewTrackingService(f.registry, f.attempts, f.users)
	f.setNow(f.now)
	return f
}

func (f *fixture) setNow(now time.Time) {
	f.now = now
	clock := func() time.Time { return f.now }
	f.registry.now = clock
	f.tracker.now = clock
	f.scoring.now = clock
	f.tracking.now = clock
}

func (f *fixture) advance(d time.Duration) {
	f.setNow(f.now.Add(d))
}

// openSession stores an active session owned by the professor whose window
// spans an hour either side of now, so only the attempt clock limits it.
func (f *fixture) openSession(t *testing.T, durationMinutes int, scopeID *int) model.ExamSession {
	t.Helper()
	f.seq++
	s := model.ExamSession{
		ID:              uuid.New(),
		Code:            fmt.Sprintf("S%05d", f.seq),
		QCMID:           f.qcm.ID,
		OwnerID:         professorID,
		ScopeID:         scopeID,
		StartTime:       f.now.Add(-time.Hour),
		EndTime:         f.now.Add(time.Hour),
		DurationMinutes: durationMinutes,
		TotalGrade:      20,
		IsActive:        true,
		CreatedAt:       f.now.Add(-2 * time.Hour),
	}
	f.sessions.Put(s)
	return s
}

// startedAttempt stores an unfinished attempt for studentID that began ago before now.
func (f *fixture) startedAttempt(session model.ExamSession, studentID int, ago time.Duration) model.Attempt {
	a := model.Attempt{
		ID:        uuid.New(),
		SessionID: session.ID,
		StudentID: studentID,
		StartedAt: f.now.Add(-ago),
	}
	f.attempts.Put(a)
	return a
}

// buildQCM returns a set whose question i has four choices with choice i%4 correct.
func buildQCM(count int) *model.QCM {
	q := &model.QCM{ID: uuid.New(), Title: "Networks", Level: "L2"}
	for i := 0; i < count; i++ {
		qu := model.Question{
			ID:       uuid.New(),
			Text:     fmt.Sprintf("Question %d", i+1),
			OrderNum: i + 1,
			Choices:  make([]model.Choice, 4),
		}
		for c := range qu.Choices {
			qu.Choices[c] = model.Choice{Text: fmt.Sprintf("choice %d", c), IsCorrect: c == i%4}
		}
		q.Questions = append(q.Questions, qu)
	}
	return q
}

func intPtr(v int) *int { return &v }
