package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// answerBufferTTL bounds how long an abandoned attempt's buffer lingers.
const answerBufferTTL = 48 * time.Hour

// PersistAnswerJob is one queued write for the autosave worker.
type PersistAnswerJob struct {
	AttemptID     string `json:"attempt_id"`
	QuestionID    string `json:"question_id"`
	SelectedIndex int    `json:"selected_index"`
}

// AnswerBufferRepository keeps the latest selections of an attempt in a Redis
// hash and queues each one for persistence by the autosave worker.
type AnswerBufferRepository struct {
	rdb *redis.Client
}

// NewAnswerBufferRepository creates a new AnswerBufferRepository.
func NewAnswerBufferRepository(rdb *redis.Client) *AnswerBufferRepository {
	return &AnswerBufferRepository{rdb: rdb}
}

// Put records a selection and enqueues it, atomically.
func (r *AnswerBufferRepository) Put(ctx context.Context, attemptID, questionID uuid.UUID, selectedIndex int) error {
	job, err := json.Marshal(PersistAnswerJob{
		AttemptID:     attemptID.String(),
		QuestionID:    questionID.String(),
		SelectedIndex: selectedIndex,
	})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID.String(), selectedIndex)
	pipe.Expire(ctx, key, answerBufferTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the buffered selections of an attempt. Malformed entries are ignored.
func (r *AnswerBufferRepository) Load(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]int, error) {
	fields, err := r.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(fields))
	for k, v := range fields {
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		idx, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[qid] = idx
	}
	return out, nil
}

// Clear drops the buffer of a finalized attempt.
func (r *AnswerBufferRepository) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID.String())).Err()
}
