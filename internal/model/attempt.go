package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attempt is one student's single pass through a session.
// StartedAt is written once at creation; FinishedAt and Score are written once at finalization.
type Attempt struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	StudentID  int        `json:"student_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Score      *float64   `json:"score,omitempty"`
}

// IsFinished reports whether the attempt has been finalized.
func (a *Attempt) IsFinished() bool {
	return a.FinishedAt != nil
}

// Answer is a stored selection for one question of an attempt.
type Answer struct {
	ID                  uuid.UUID `json:"id"`
	AttemptID           uuid.UUID `json:"attempt_id"`
	QuestionID          uuid.UUID `json:"question_id"`
	SelectedChoiceIndex int       `json:"selected_choice_index"`
	IsCorrect           bool      `json:"is_correct"`
}

// ExamConfig tells the client where to resume and how long the current question has left.
type ExamConfig struct {
	TotalDuration       int `json:"total_duration"` // seconds
	SecondsPerQuestion  int `json:"seconds_per_question"`
	StartAtIndex        int `json:"start_at_index"`
	InitialQuestionTime int `json:"initial_question_time"`
}

// JoinResult is returned to a student who joins or resumes a session.
type JoinResult struct {
	AttemptID  uuid.UUID   `json:"attempt_id"`
	Resumed    bool        `json:"resumed"`
	QCM        *QCMPayload `json:"qcm"`
	ExamConfig ExamConfig  `json:"exam_config"`
}

// AttemptState is returned when a student reloads an in-progress attempt.
type AttemptState struct {
	Attempt    Attempt        `json:"attempt"`
	ExamConfig ExamConfig     `json:"exam_config"`
	Answers    map[string]int `json:"answers"`
}

// SubmittedAnswer is a raw (question, choice) pair from the client.
// Decoding never fails: an entry with a non-string id or a missing, negative or
// non-integer index comes out with an empty QuestionID or SelectedIndex -1 and
// is skipped at grading time, so one bad entry cannot sink the rest.
type SubmittedAnswer struct {
	QuestionID    string `json:"question_id"`
	SelectedIndex int    `json:"selected_index"`
}

// UnmarshalJSON decodes leniently; see SubmittedAnswer.
func (a *SubmittedAnswer) UnmarshalJSON(data []byte) error {
	*a = SubmittedAnswer{SelectedIndex: -1}

	var raw struct {
		QuestionID    json.RawMessage `json:"question_id"`
		SelectedIndex json.RawMessage `json:"selected_index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var qid string
	if json.Unmarshal(raw.QuestionID, &qid) == nil {
		a.QuestionID = qid
	}
	var idx int
	if json.Unmarshal(raw.SelectedIndex, &idx) == nil && idx >= 0 {
		a.SelectedIndex = idx
	}
	return nil
}

// JoinExamRequest is the payload for a student joining a session by code.
type JoinExamRequest struct {
	Code string `json:"code" binding:"required,min=4,max=20,joincode"`
}

// SaveAnswerRequest is the payload for the incremental-save path.
type SaveAnswerRequest struct {
	QuestionID    string `json:"question_id" binding:"required,uuid"`
	SelectedIndex *int   `json:"selected_index" binding:"required,min=0"`
}

// SubmitExamRequest is the final answer snapshot of an attempt.
type SubmitExamRequest struct {
	Answers []SubmittedAnswer `json:"answers"`
}

// SubmitResult is returned once an attempt is finalized.
type SubmitResult struct {
	AttemptID    uuid.UUID `json:"attempt_id"`
	Score        float64   `json:"score"`
	TotalGrade   float64   `json:"total_grade"`
	CorrectCount int       `json:"correct_answers"`
	Status       string    `json:"status"`
}

// LiveStatus is the live-view status of an unfinished attempt.
type LiveStatus string

const (
	LiveStatusActive LiveStatus = "Active"
	LiveStatusTimeUp LiveStatus = "TimeUp"
)

// LiveAttempt is one row of the owner's live tracking view.
type LiveAttempt struct {
	AttemptID        uuid.UUID  `json:"attempt_id"`
	StudentID        int        `json:"student_id"`
	StudentName      string     `json:"student_name"`
	StartedAt        time.Time  `json:"started_at"`
	RemainingSeconds int        `json:"remaining_seconds"`
	MinutesRemaining int        `json:"minutes_remaining"`
	Status           LiveStatus `json:"status"`
}

// AttemptResult is one row of the owner's results view.
type AttemptResult struct {
	AttemptID   uuid.UUID  `json:"attempt_id"`
	StudentID   int        `json:"student_id"`
	StudentName string     `json:"student_name"`
	Score       *float64   `json:"score"`
	TotalGrade  float64    `json:"total"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

const (
	AttemptStatusFinished   = "Finished"
	AttemptStatusInProgress = "In Progress"
)
