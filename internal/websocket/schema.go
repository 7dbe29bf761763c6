package websocket

import "github.com/qcmhub/qcm-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single client message shape; fields unused by an action are ignored.
type RequestPayload struct {
	Action Action `json:"action"`

	// autosave
	QuestionID    string `json:"q_id,omitempty"`
	SelectedIndex *int   `json:"ans,omitempty"`

	// submit
	Answers []model.SubmittedAnswer `json:"answers,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"q_id"`
}

type GradedResponse struct {
	Event  Event               `json:"event"`
	Result *model.SubmitResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// PongResponse doubles as a clock sync: the client re-bases its countdown on it.
type PongResponse struct {
	Event      Event            `json:"event"`
	ExamConfig model.ExamConfig `json:"exam_config"`
}
