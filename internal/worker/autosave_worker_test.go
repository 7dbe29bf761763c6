package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/rs/zerolog"
)

// flakyWriter rejects multi-row batches and records every single-row write.
type flakyWriter struct {
	finished map[uuid.UUID]bool
	batches  int
	rows     []model.Answer
}

func (w *flakyWriter) SaveAnswers(_ context.Context, answers []model.Answer) error {
	w.batches++
	if len(answers) > 1 {
		return errors.New("deadlock detected")
	}
	if w.finished[answers[0].AttemptID] {
		return repository.ErrAttemptFinished
	}
	w.rows = append(w.rows, answers[0])
	return nil
}

func TestDecodeJobsSkipsMalformedEntries(t *testing.T) {
	good := model.Answer{AttemptID: uuid.New(), QuestionID: uuid.New(), SelectedChoiceIndex: 2}
	raw := []string{
		encodeJob(good),
		"{not json",
		`{"attempt_id":"nope","question_id":"` + uuid.NewString() + `","selected_index":1}`,
		`{"attempt_id":"` + uuid.NewString() + `","question_id":"` + uuid.NewString() + `","selected_index":-1}`,
	}

	got := decodeJobs(raw, zerolog.Nop())
	if len(got) != 1 || got[0] != good {
		t.Fatalf("decodeJobs = %+v, want only %+v", got, good)
	}
}

func TestFlushFallsBackToSingleRows(t *testing.T) {
	open, closed := uuid.New(), uuid.New()
	writer := &flakyWriter{finished: map[uuid.UUID]bool{closed: true}}
	w := NewAutosaveWorker(writer, nil, zerolog.Nop())

	raw := []string{
		encodeJob(model.Answer{AttemptID: open, QuestionID: uuid.New(), SelectedChoiceIndex: 0}),
		encodeJob(model.Answer{AttemptID: closed, QuestionID: uuid.New(), SelectedChoiceIndex: 1}),
		encodeJob(model.Answer{AttemptID: open, QuestionID: uuid.New(), SelectedChoiceIndex: 3}),
	}
	if err := w.flush(context.Background(), raw); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if writer.batches != 4 {
		t.Fatalf("writer called %d times, want 1 batch + 3 rows", writer.batches)
	}
	if len(writer.rows) != 2 {
		t.Fatalf("persisted %d rows, want the 2 of the open attempt", len(writer.rows))
	}
}

func TestFlushSingleRowErrorIsReturned(t *testing.T) {
	w := NewAutosaveWorker(&failingWriter{}, nil, zerolog.Nop())
	raw := []string{encodeJob(model.Answer{AttemptID: uuid.New(), QuestionID: uuid.New()})}
	if err := w.flush(context.Background(), raw); err == nil {
		t.Fatal("flush of a failing single row should return the error for requeue")
	}
}

type failingWriter struct{}

func (failingWriter) SaveAnswers(context.Context, []model.Answer) error {
	return errors.New("connection refused")
}
