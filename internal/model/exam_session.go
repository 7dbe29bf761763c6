package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is derived from the session window at read time; it is never stored.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "Scheduled"
	SessionStatusActive    SessionStatus = "Active"
	SessionStatusFinished  SessionStatus = "Finished"
)

// ExamSession is a scheduled, time-boxed instance of a QCM, joined by code.
type ExamSession struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	QCMID           uuid.UUID `json:"qcm_id"`
	OwnerID         int       `json:"owner_id"`
	ScopeID         *int      `json:"scope_id,omitempty"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalGrade      float64   `json:"total_grade"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// StatusAt derives the session status relative to now.
func (s *ExamSession) StatusAt(now time.Time) SessionStatus {
	switch {
	case now.Before(s.StartTime):
		return SessionStatusScheduled
	case now.After(s.EndTime):
		return SessionStatusFinished
	default:
		return SessionStatusActive
	}
}

// IsOpenAt reports whether now falls inside [StartTime, EndTime].
func (s *ExamSession) IsOpenAt(now time.Time) bool {
	return s.StatusAt(now) == SessionStatusActive
}

// ExamSessionSummary is a listing row for owners and administrators.
type ExamSessionSummary struct {
	ExamSession
	QCMTitle     string        `json:"title"`
	Status       SessionStatus `json:"status"`
	StudentCount int           `json:"student_count"`
}

// CreateExamSessionRequest is the payload for scheduling a new session.
type CreateExamSessionRequest struct {
	QCMID           string   `json:"qcm_id" binding:"required,uuid"`
	ScopeID         *int     `json:"scope_id" binding:"omitempty,min=1"`
	Description     string   `json:"description" binding:"omitempty,max=1000"`
	StartTime       string   `json:"start_time" binding:"required"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,min=1,max=1440"`
	TotalGrade      *float64 `json:"total_grade" binding:"omitempty,gt=0,lte=1000"`
}
