package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/database"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// These tests run against a migrated database and a scratch Redis.
// Set QCM_TEST_DATABASE_URL and QCM_TEST_REDIS_URL to enable them.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("QCM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("QCM_TEST_DATABASE_URL not set")
	}
	pool, err := database.NewPostgresPool(context.Background(), &config.Config{DatabaseURL: url, MaxDBConns: 4}, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("QCM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("QCM_TEST_REDIS_URL not set")
	}
	rdb, err := database.NewRedisClient(context.Background(), &config.Config{RedisURL: url}, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// seedSession creates a professor, a student, a two-question set and an open session.
func seedSession(t *testing.T, pool *pgxpool.Pool) (*model.ExamSession, *model.QCM, int) {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(pool)
	prof := &model.User{FirstName: "Claire", LastName: "Martin", Role: model.RoleProfessor}
	stud := &model.User{FirstName: "Hugo", LastName: "Petit", Role: model.RoleStudent}
	for _, u := range []*model.User{prof, stud} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	qcm := &model.QCM{Title: "Integration", AuthorID: prof.ID, Questions: []model.Question{
		{Text: "2+2", OrderNum: 1, Choices: []model.Choice{{Text: "3"}, {Text: "4", IsCorrect: true}}},
		{Text: "3*3", OrderNum: 2, Choices: []model.Choice{{Text: "9", IsCorrect: true}, {Text: "6"}}},
	}}
	if err := NewQuestionRepository(pool).CreateQCM(ctx, qcm); err != nil {
		t.Fatalf("CreateQCM: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	session := &model.ExamSession{
		Code:            strings.ToUpper(uuid.NewString()[:6]),
		QCMID:           qcm.ID,
		OwnerID:         prof.ID,
		StartTime:       now.Add(-time.Minute),
		EndTime:         now.Add(time.Hour),
		DurationMinutes: 60,
		TotalGrade:      20,
		IsActive:        true,
	}
	if err := NewExamSessionRepository(pool).Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session, qcm, stud.ID
}

func TestSessionRepositoryPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewExamSessionRepository(pool)
	session, qcm, studentID := seedSession(t, pool)

	dup := *session
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("duplicate active code err = %v, want ErrCodeTaken", err)
	}

	got, err := repo.GetByCode(ctx, session.Code)
	if err != nil || got.ID != session.ID {
		t.Fatalf("GetByCode = (%+v, %v)", got, err)
	}

	open, err := repo.ListOpen(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	found := false
	for _, s := range open {
		if s.ID == session.ID {
			found = s.QCMTitle == qcm.Title
		}
	}
	if !found {
		t.Fatalf("open sessions miss %s", session.ID)
	}

	if _, _, err := NewAttemptRepository(pool).CreateOrGet(ctx, session.ID, studentID, time.Now()); err != nil {
		t.Fatalf("CreateOrGet: %v", err)
	}
	deleted, err := repo.DeleteIfNoAttempts(ctx, session.ID)
	if err != nil || deleted {
		t.Fatalf("DeleteIfNoAttempts with an attempt = (%t, %v), want (false, nil)", deleted, err)
	}
}

func TestAttemptRepositoryPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAttemptRepository(pool)
	session, qcm, studentID := seedSession(t, pool)

	started := time.Now().UTC().Truncate(time.Microsecond)
	first, created, err := repo.CreateOrGet(ctx, session.ID, studentID, started)
	if err != nil || !created {
		t.Fatalf("first CreateOrGet = (%t, %v)", created, err)
	}
	again, created, err := repo.CreateOrGet(ctx, session.ID, studentID, started.Add(time.Minute))
	if err != nil || created || again.ID != first.ID || !again.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("second CreateOrGet = (%+v, %t, %v)", again, created, err)
	}

	q0, q1 := qcm.Questions[0].ID, qcm.Questions[1].ID
	if err := repo.SaveAnswer(ctx, first.ID, q0, 0); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := repo.SaveAnswer(ctx, first.ID, q0, 1); err != nil {
		t.Fatalf("SaveAnswer overwrite: %v", err)
	}

	answers := []model.Answer{
		{AttemptID: first.ID, QuestionID: q0, SelectedChoiceIndex: 1, IsCorrect: true},
		{AttemptID: first.ID, QuestionID: q1, SelectedChoiceIndex: 1},
	}
	if err := repo.Finalize(ctx, first.ID, answers, 10, time.Now()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := repo.Finalize(ctx, first.ID, answers, 20, time.Now()); !errors.Is(err, ErrAttemptFinished) {
		t.Fatalf("second Finalize err = %v, want ErrAttemptFinished", err)
	}

	stored, err := repo.GetByID(ctx, first.ID)
	if err != nil || !stored.IsFinished() || *stored.Score != 10 {
		t.Fatalf("finalized attempt = (%+v, %v)", stored, err)
	}
	rows, err := repo.ListAnswers(ctx, first.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListAnswers = (%d, %v), want 2", len(rows), err)
	}

	open, err := repo.ListUnfinishedBySession(ctx, session.ID)
	if err != nil || len(open) != 0 {
		t.Fatalf("unfinished after finalize = (%d, %v)", len(open), err)
	}
}

func TestAttemptCreateOrGetConcurrentPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAttemptRepository(pool)
	session, _, studentID := seedSession(t, pool)

	const joiners = 20
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		ids     = make([]uuid.UUID, joiners)
		created = make([]bool, joiners)
		errs    = make([]error, joiners)
	)
	started := time.Now().UTC()
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			a, isNew, err := repo.CreateOrGet(ctx, session.ID, studentID, started.Add(time.Duration(i)*time.Millisecond))
			if err == nil {
				ids[i], created[i] = a.ID, isNew
			}
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	inserts := 0
	for i := 0; i < joiners; i++ {
		if errs[i] != nil {
			t.Fatalf("CreateOrGet %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("CreateOrGet %d returned %s, want %s", i, ids[i], ids[0])
		}
		if created[i] {
			inserts++
		}
	}
	if inserts != 1 {
		t.Fatalf("%d calls reported an insert, want 1", inserts)
	}

	rows, err := repo.ListBySession(ctx, session.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListBySession = (%d, %v), want 1", len(rows), err)
	}
}

func TestAnswerBufferRedis(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	buf := NewAnswerBufferRepository(rdb)
	attemptID, q0, q1 := uuid.New(), uuid.New(), uuid.New()
	t.Cleanup(func() { _ = buf.Clear(ctx, attemptID) })

	for _, put := range []struct {
		q   uuid.UUID
		idx int
	}{{q0, 2}, {q1, 0}, {q0, 3}} {
		if err := buf.Put(ctx, attemptID, put.q, put.idx); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	got, err := buf.Load(ctx, attemptID)
	if err != nil || len(got) != 2 || got[q0] != 3 || got[q1] != 0 {
		t.Fatalf("Load = (%v, %v)", got, err)
	}

	if err := buf.Clear(ctx, attemptID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := buf.Load(ctx, attemptID); len(got) != 0 {
		t.Fatalf("Load after Clear = %v", got)
	}
}
