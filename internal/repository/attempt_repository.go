package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qcmhub/qcm-backend/internal/model"
)

const attemptColumns = `id, session_id, student_id, started_at, finished_at, score`

// AttemptRepository handles attempt and answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row, a *model.Attempt) error {
	return row.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Score)
}

// CreateOrGet inserts the attempt for (sessionID, studentID) or returns the one
// that already exists. The bool is true when this call created it. started_at
// of an existing row is never touched.
func (r *AttemptRepository) CreateOrGet(ctx context.Context, sessionID uuid.UUID, studentID int, startedAt time.Time) (*model.Attempt, bool, error) {
	a := &model.Attempt{}
	err := scanAttempt(r.pool.QueryRow(ctx,
		`INSERT INTO attempts (session_id, student_id, started_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, student_id) DO NOTHING
		 RETURNING `+attemptColumns,
		sessionID, studentID, startedAt,
	), a)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Lost the insert to an earlier or concurrent join.
	err = scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE session_id = $1 AND student_id = $2`,
		sessionID, studentID,
	), a)
	if err != nil {
		return nil, false, fmt.Errorf("fetch existing attempt: %w", err)
	}
	return a, false, nil
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id,
	), a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnswers retrieves the stored answers of an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_choice_index, is_correct
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedChoiceIndex, &a.IsCorrect); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SaveAnswer upserts one selection while the attempt is unfinished.
// The attempt row is share-locked so a concurrent Finalize cannot interleave.
func (r *AttemptRepository) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error {
	return r.SaveAnswers(ctx, []model.Answer{{
		AttemptID:           attemptID,
		QuestionID:          questionID,
		SelectedChoiceIndex: selectedIndex,
	}})
}

// SaveAnswers upserts a batch of selections in one transaction. Rows belonging
// to finished attempts are dropped; if every row was dropped ErrAttemptFinished
// is returned.
func (r *AttemptRepository) SaveAnswers(ctx context.Context, answers []model.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	attemptIDs := make([]uuid.UUID, len(answers))
	questionIDs := make([]uuid.UUID, len(answers))
	indexes := make([]int32, len(answers))
	for i, a := range answers {
		attemptIDs[i] = a.AttemptID
		questionIDs[i] = a.QuestionID
		indexes[i] = int32(a.SelectedChoiceIndex)
	}

	// Last entry wins when the batch holds several selections for one question.
	tag, err := tx.Exec(ctx,
		`WITH incoming AS (
		     SELECT DISTINCT ON (attempt_id, question_id) attempt_id, question_id, selected_choice_index
		     FROM UNNEST($1::uuid[], $2::uuid[], $3::int[]) WITH ORDINALITY
		          AS t(attempt_id, question_id, selected_choice_index, ord)
		     ORDER BY attempt_id, question_id, ord DESC
		 ), open_attempts AS (
		     SELECT id FROM attempts
		     WHERE id IN (SELECT attempt_id FROM incoming) AND finished_at IS NULL
		     FOR SHARE
		 )
		 INSERT INTO attempt_answers (attempt_id, question_id, selected_choice_index)
		 SELECT i.attempt_id, i.question_id, i.selected_choice_index
		 FROM incoming i JOIN open_attempts o ON o.id = i.attempt_id
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_choice_index = EXCLUDED.selected_choice_index, updated_at = NOW()`,
		attemptIDs, questionIDs, indexes,
	)
	if err != nil {
		return fmt.Errorf("upsert answers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptFinished
	}

	return tx.Commit(ctx)
}

// Finalize stores the graded answers and closes the attempt in one transaction.
// The first statement is a compare-and-swap on finished_at; when it matches no
// row the attempt was already finalized and ErrAttemptFinished is returned with
// nothing written.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, answers []model.Answer, score float64, finishedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attempts SET finished_at = $2, score = $3
		 WHERE id = $1 AND finished_at IS NULL`,
		attemptID, finishedAt, score)
	if err != nil {
		return fmt.Errorf("close attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptFinished
	}

	if len(answers) > 0 {
		batch := &pgx.Batch{}
		for _, a := range answers {
			batch.Queue(
				`INSERT INTO attempt_answers (attempt_id, question_id, selected_choice_index, is_correct)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (attempt_id, question_id) DO UPDATE
				 SET selected_choice_index = EXCLUDED.selected_choice_index,
				     is_correct = EXCLUDED.is_correct,
				     updated_at = NOW()`,
				attemptID, a.QuestionID, a.SelectedChoiceIndex, a.IsCorrect,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("store answers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListBySession retrieves every attempt of a session, oldest first.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE session_id = $1 ORDER BY started_at`, sessionID)
}

// ListUnfinishedBySession retrieves the in-progress attempts of a session.
func (r *AttemptRepository) ListUnfinishedBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1 AND finished_at IS NULL ORDER BY started_at`, sessionID)
}

func (r *AttemptRepository) list(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
