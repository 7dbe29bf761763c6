package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qcmhub/qcm-backend/internal/model"
)

// QuestionRepository reads question sets from the question bank tables.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetQCM retrieves a question set with its questions ordered by order_num.
// Returns pgx.ErrNoRows if the set does not exist.
func (r *QuestionRepository) GetQCM(ctx context.Context, id uuid.UUID) (*model.QCM, error) {
	q := &model.QCM{}
	var authorID *int
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, level, author_id, created_at FROM qcms WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Level, &authorID, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	if authorID != nil {
		q.AuthorID = *authorID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, qcm_id, text, choices, order_num
		 FROM questions WHERE qcm_id = $1
		 ORDER BY order_num, id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var qu model.Question
		if err := rows.Scan(&qu.ID, &qu.QCMID, &qu.Text, &qu.Choices, &qu.OrderNum); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Questions = append(q.Questions, qu)
	}
	return q, rows.Err()
}

// GetPayload returns the student-facing view of a question set.
func (r *QuestionRepository) GetPayload(ctx context.Context, id uuid.UUID) (*model.QCMPayload, error) {
	q, err := r.GetQCM(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.Payload(), nil
}

// GetAnswerKey returns the correct choice index of every question in the set.
func (r *QuestionRepository) GetAnswerKey(ctx context.Context, id uuid.UUID) (map[uuid.UUID]int, error) {
	q, err := r.GetQCM(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.AnswerKey(), nil
}

// CreateQCM inserts a question set and its questions in one transaction.
// Used by the demo seeder; the question bank service owns authoring.
func (r *QuestionRepository) CreateQCM(ctx context.Context, q *model.QCM) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var authorID *int
	if q.AuthorID > 0 {
		authorID = &q.AuthorID
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO qcms (title, level, author_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		q.Title, q.Level, authorID,
	).Scan(&q.ID, &q.CreatedAt); err != nil {
		return fmt.Errorf("insert qcm: %w", err)
	}

	for i := range q.Questions {
		qu := &q.Questions[i]
		qu.QCMID = q.ID
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (qcm_id, text, choices, order_num) VALUES ($1, $2, $3, $4) RETURNING id`,
			q.ID, qu.Text, qu.Choices, qu.OrderNum,
		).Scan(&qu.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
