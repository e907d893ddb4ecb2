package websocket

import "github.com/stemsi/exstem-quiz/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest carries the full current draft. Validated with the same
// tags as model.AutosaveRequest.
type AutosaveRequest struct {
	Action  Action                  `json:"action"`
	Answers []model.SubmittedAnswer `json:"answers" binding:"required,dive"`
	Seq     int64                   `json:"seq" binding:"min=0"`
}

// SubmitRequest finishes and grades the exam.
type SubmitRequest struct {
	Action  Action                  `json:"action"`
	Answers []model.SubmittedAnswer `json:"answers" binding:"required,dive"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type AutosaveResponse struct {
	Event Event `json:"event"`
	Seq   int64 `json:"seq"`
}

type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
