package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qcmhub/qcm-backend/internal/model"
)

const sessionColumns = `es.id, es.code, es.qcm_id, es.owner_id, es.scope_id, es.description,
	es.start_time, es.end_time, es.duration_minutes, es.total_grade, es.is_active, es.created_at`

const summaryQuery = `SELECT ` + sessionColumns + `, q.title,
	(SELECT COUNT(*) FROM attempts a WHERE a.session_id = es.id)
	FROM exam_sessions es
	JOIN qcms q ON q.id = es.qcm_id`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row, s *model.ExamSession, extra ...any) error {
	dest := []any{
		&s.ID, &s.Code, &s.QCMID, &s.OwnerID, &s.ScopeID, &s.Description,
		&s.StartTime, &s.EndTime, &s.DurationMinutes, &s.TotalGrade, &s.IsActive, &s.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts a session. Returns ErrCodeTaken if the code collides with an active session.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions
		   (code, qcm_id, owner_id, scope_id, description, start_time, end_time, duration_minutes, total_grade, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		s.Code, s.QCMID, s.OwnerID, s.ScopeID, s.Description,
		s.StartTime, s.EndTime, s.DurationMinutes, s.TotalGrade, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt)
	if code, constraint := pgErrorCode(err); code == pgUniqueViolation && constraint == "exam_sessions_active_code_key" {
		return ErrCodeTaken
	}
	return err
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions es WHERE es.id = $1`, id,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByCode retrieves the session holding a code, preferring the active one.
// Inactive sessions may share a code, so the newest of them is returned.
func (r *ExamSessionRepository) GetByCode(ctx context.Context, code string) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions es
		 WHERE es.code = $1
		 ORDER BY es.is_active DESC, es.created_at DESC
		 LIMIT 1`, code,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CodeInUse reports whether an active session already holds code.
func (r *ExamSessionRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_sessions WHERE code = $1 AND is_active)`, code,
	).Scan(&exists)
	return exists, err
}

// DeleteIfNoAttempts deletes the session in one statement guarded by the absence
// of attempts. It returns false when attempts exist. The RESTRICT foreign key on
// attempts turns a join racing the delete into ErrHasAttempts.
func (r *ExamSessionRepository) DeleteIfNoAttempts(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_sessions es
		 WHERE es.id = $1
		   AND NOT EXISTS (SELECT 1 FROM attempts a WHERE a.session_id = es.id)`, id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return false, ErrHasAttempts
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByOwner retrieves every session created by ownerID, newest first.
func (r *ExamSessionRepository) ListByOwner(ctx context.Context, ownerID int) ([]model.ExamSessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		summaryQuery+` WHERE es.owner_id = $1 ORDER BY es.start_time DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

// ListAll retrieves one page of all sessions and the total count.
func (r *ExamSessionRepository) ListAll(ctx context.Context, limit, offset int) ([]model.ExamSessionSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		summaryQuery+` ORDER BY es.start_time DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectSummaries(rows)
	return list, total, err
}

// ListOpen retrieves active sessions whose window contains at.
func (r *ExamSessionRepository) ListOpen(ctx context.Context, at time.Time) ([]model.ExamSessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		summaryQuery+` WHERE es.is_active AND es.start_time <= $1 AND es.end_time >= $1
		 ORDER BY es.end_time ASC`, at)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]model.ExamSessionSummary, error) {
	defer rows.Close()

	var list []model.ExamSessionSummary
	for rows.Next() {
		var s model.ExamSessionSummary
		if err := scanSession(rows, &s.ExamSession, &s.QCMTitle, &s.StudentCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
