package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	autosaveBatchSize  = 200
	autosaveRetryDelay = 5 * time.Second
)

// AnswerWriter persists batches of answer selections.
// Implemented by repository.AttemptRepository.
type AnswerWriter interface {
	SaveAnswers(ctx context.Context, answers []model.Answer) error
}

// AutosaveWorker consumes persist_answers_queue and upserts answers to PostgreSQL.
// Writes for attempts that were finalized in the meantime are dropped.
type AutosaveWorker struct {
	writer AnswerWriter
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(writer AnswerWriter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		writer: writer,
		rdb:    rdb,
		log:    log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; it returns after ctx is
// cancelled and the queue has been drained.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	queue := config.WorkerKey.PersistAnswersQueue

	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	// Pick up whatever else is already waiting so one transaction covers it.
	raw := []string{result[1]}
	more, err := w.rdb.LPopCount(ctx, queue, autosaveBatchSize-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.log.Warn().Err(err).Msg("LPopCount error")
	}
	raw = append(raw, more...)

	if err := w.flush(ctx, raw); err != nil {
		w.log.Error().Err(err).Int("count", len(raw)).Msg("Persist error, retrying in 5s")
		w.requeue(context.Background(), raw)
		select {
		case <-ctx.Done():
		case <-time.After(autosaveRetryDelay):
		}
	}
}

// flush writes the batch in one statement, then falls back to one row at a time
// so a single bad row cannot hold up the rest.
func (w *AutosaveWorker) flush(ctx context.Context, raw []string) error {
	answers := decodeJobs(raw, w.log)
	if len(answers) == 0 {
		return nil
	}

	err := w.writer.SaveAnswers(ctx, answers)
	if err == nil || errors.Is(err, repository.ErrAttemptFinished) {
		return nil
	}
	if len(answers) == 1 {
		return err
	}

	w.log.Warn().Err(err).Int("count", len(answers)).Msg("Batch upsert failed, falling back to single rows")
	var failed []string
	for i, a := range answers {
		rowErr := w.writer.SaveAnswers(ctx, []model.Answer{a})
		if rowErr == nil || errors.Is(rowErr, repository.ErrAttemptFinished) {
			continue
		}
		w.log.Error().Err(rowErr).
			Str("attempt_id", a.AttemptID.String()).
			Str("question_id", a.QuestionID.String()).
			Msg("Row upsert failed")
		failed = append(failed, encodeJob(answers[i]))
	}
	if len(failed) > 0 {
		w.requeue(context.Background(), failed)
	}
	return nil
}

func (w *AutosaveWorker) requeue(ctx context.Context, raw []string) {
	if len(raw) == 0 {
		return
	}
	items := make([]interface{}, len(raw))
	for i, r := range raw {
		items[i] = r
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, items...).Err(); err != nil {
		w.log.Error().Err(err).Int("count", len(raw)).Msg("Requeue failed, answers remain only in the attempt buffer")
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPopCount(ctx, config.WorkerKey.PersistAnswersQueue, autosaveBatchSize).Result()
		if err != nil || len(raw) == 0 {
			break
		}
		if err := w.flush(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.requeue(ctx, raw)
			break
		}
		drained += len(raw)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func decodeJobs(raw []string, log zerolog.Logger) []model.Answer {
	answers := make([]model.Answer, 0, len(raw))
	for _, r := range raw {
		var job repository.PersistAnswerJob
		if err := json.Unmarshal([]byte(r), &job); err != nil {
			log.Error().Err(err).Msg("Unmarshal error, dropping job")
			continue
		}
		attemptID, err := uuid.Parse(job.AttemptID)
		if err != nil {
			continue
		}
		questionID, err := uuid.Parse(job.QuestionID)
		if err != nil || job.SelectedIndex < 0 {
			continue
		}
		answers = append(answers, model.Answer{
			AttemptID:           attemptID,
			QuestionID:          questionID,
			SelectedChoiceIndex: job.SelectedIndex,
		})
	}
	return answers
}

func encodeJob(a model.Answer) string {
	b, _ := json.Marshal(repository.PersistAnswerJob{
		AttemptID:     a.AttemptID.String(),
		QuestionID:    a.QuestionID.String(),
		SelectedIndex: a.SelectedChoiceIndex,
	})
	return string(b)
}
