package model

import (
	"time"

	"github.com/google/uuid"
)

// Choice is one answer option of a question.
type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a single multiple-choice question of a QCM.
type Question struct {
	ID       uuid.UUID `json:"id"`
	QCMID    uuid.UUID `json:"qcm_id"`
	Text     string    `json:"text"`
	Choices  []Choice  `json:"choices"`
	OrderNum int       `json:"order_num"`
}

// CorrectIndex returns the position of the correct choice, or -1 when none is flagged.
func (q *Question) CorrectIndex() int {
	for i, c := range q.Choices {
		if c.IsCorrect {
			return i
		}
	}
	return -1
}

// QCM is an immutable, ordered question set.
type QCM struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Level     string     `json:"level"`
	AuthorID  int        `json:"author_id"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"`
}

// AnswerKey maps question IDs to the index of their correct choice.
func (q *QCM) AnswerKey() map[uuid.UUID]int {
	key := make(map[uuid.UUID]int, len(q.Questions))
	for i := range q.Questions {
		key[q.Questions[i].ID] = q.Questions[i].CorrectIndex()
	}
	return key
}

// Payload strips correct-choice flags so the set can be shown to students.
func (q *QCM) Payload() *QCMPayload {
	p := &QCMPayload{
		QCMID:     q.ID,
		Title:     q.Title,
		Level:     q.Level,
		Questions: make([]QuestionForStudent, 0, len(q.Questions)),
	}
	for _, qu := range q.Questions {
		texts := make([]string, len(qu.Choices))
		for i, c := range qu.Choices {
			texts[i] = c.Text
		}
		p.Questions = append(p.Questions, QuestionForStudent{
			ID:       qu.ID,
			Text:     qu.Text,
			Choices:  texts,
			OrderNum: qu.OrderNum,
		})
	}
	return p
}

// QCMPayload is the Redis-cached question set sent to students (no correct answers).
type QCMPayload struct {
	QCMID     uuid.UUID            `json:"qcm_id"`
	Title     string               `json:"title"`
	Level     string               `json:"level"`
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Choices  []string  `json:"choices"`
	OrderNum int       `json:"order_num"`
}
