package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType enumerates attempt lifecycle events pushed to live views.
type MonitorEventType string

const (
	MonitorEventJoined    MonitorEventType = "joined"
	MonitorEventResumed   MonitorEventType = "resumed"
	MonitorEventSubmitted MonitorEventType = "submitted"
)

// MonitorEvent is published on the session's monitor channel.
type MonitorEvent struct {
	Type      MonitorEventType `json:"type"`
	SessionID uuid.UUID        `json:"session_id"`
	AttemptID uuid.UUID        `json:"attempt_id"`
	StudentID int              `json:"student_id"`
	At        time.Time        `json:"at"`
}
