package service

import (
	"fmt"
	"time"

	"github.com/qcmhub/qcm-backend/internal/model"
)

// ExamClock is the position of an attempt derived from its start time.
// Nothing about the clock is stored; it is recomputed on every join, reload and live view.
type ExamClock struct {
	TotalSeconds       int
	SecondsPerQuestion int
	ElapsedSeconds     int
	CurrentIndex       int
	TimeLeftOnCurrent  int
}

// ReconstructClock computes which question an attempt is on at now and how many
// seconds are left on it. Every question gets an equal slice of the duration,
// floored to whole seconds. At an exact slice boundary the index has already
// advanced and the new question has its full slice.
//
// It returns ErrEmptyQuiz when the set has no questions and ErrTimeExpired when
// the index has run past the last question.
func ReconstructClock(questionCount, durationMinutes int, startedAt, now time.Time) (ExamClock, error) {
	if questionCount <= 0 {
		return ExamClock{}, ErrEmptyQuiz
	}

	total := durationMinutes * 60
	spq := total / questionCount

	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	clock := ExamClock{
		TotalSeconds:       total,
		SecondsPerQuestion: spq,
		ElapsedSeconds:     elapsed,
	}

	// A zero slice means the duration cannot cover even one second per question.
	if spq <= 0 {
		return clock, fmt.Errorf("%w: duration leaves no time per question", ErrTimeExpired)
	}

	clock.CurrentIndex = elapsed / spq
	if clock.CurrentIndex >= questionCount {
		return clock, ErrTimeExpired
	}
	clock.TimeLeftOnCurrent = spq - elapsed%spq

	return clock, nil
}

// Config renders the clock for the client.
func (c ExamClock) Config() model.ExamConfig {
	return model.ExamConfig{
		TotalDuration:       c.TotalSeconds,
		SecondsPerQuestion:  c.SecondsPerQuestion,
		StartAtIndex:        c.CurrentIndex,
		InitialQuestionTime: c.TimeLeftOnCurrent,
	}
}

// RemainingSeconds is the attempt's whole-duration budget left at now, floored at 0.
func RemainingSeconds(durationMinutes int, startedAt, now time.Time) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	rem := durationMinutes*60 - elapsed
	if rem < 0 {
		return 0
	}
	return rem
}

// minutesCeil rounds a second count up to whole minutes.
func minutesCeil(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}
