package models

import (
	"encoding/json"
	"time"
)

// Client-to-server frame types.
const (
	FrameCodeChange      = "code_change"
	FrameCursorPosition  = "cursor_position"
	FrameSelection       = "selection"
	FrameTestResults     = "test_results"
	FrameRoleSwitched    = "role_switched"
	FrameQuestionChanged = "question_changed"
)

// Server-to-client event types.
const (
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventCodeChanged        = "code_changed"
	EventCursorMoved        = "cursor_moved"
	EventSelectionChanged   = "selection_changed"
	EventTestResultsUpdated = "test_results_updated"
	EventRoleSwitched       = "role_switched"
	EventQuestionChanged    = "question_changed"
	EventInterviewEnded     = "interview_ended"
	EventMatchFound         = "match_found"
	EventMatchConfirmed     = "match_confirmed"
	EventMatchExpired       = "match_expired"
	EventError              = "error"
)

// WSFrame is the envelope for every message in either direction.
type WSFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame with an already-typed payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type CodeChange struct {
	Code string `json:"code"`
}

type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Selection struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

type SelectionUpdate struct {
	// Selection is nil when the sender cleared their selection.
	Selection *Selection `json:"selection"`
	Color     string     `json:"color"`
}

type QuestionChange struct {
	QuestionID string `json:"questionId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type CodeChangedPayload struct {
	UserID    string    `json:"userId"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

type CursorMovedPayload struct {
	UserID string `json:"userId"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type SelectionChangedPayload struct {
	UserID    string     `json:"userId"`
	Selection *Selection `json:"selection"`
	Color     string     `json:"color"`
}

type TestResultsPayload struct {
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type QuestionChangedPayload struct {
	UserID     string `json:"userId"`
	QuestionID string `json:"questionId"`
}

type InterviewEndedPayload struct {
	SessionID string `json:"sessionId"`
	EndedBy   string `json:"endedBy"`
}

type MatchPayload struct {
	SessionID string           `json:"sessionId"`
	Request   *MatchingRequest `json:"request"`
}
