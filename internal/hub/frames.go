package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"peerprep/interview/internal/models"
)

// translate turns a client frame into the event relayed to the sender's peers.
func translate(userID string, frame models.WSFrame, now time.Time) (models.Event, error) {
	switch frame.Type {
	case models.FrameCodeChange:
		var p models.CodeChange
		if err := decode(frame.Data, &p); err != nil {
			return models.Event{}, err
		}
		return models.Event{Type: models.EventCodeChanged, Data: models.CodeChangedPayload{
			UserID: userID, Code: p.Code, Timestamp: now,
		}}, nil

	case models.FrameCursorPosition:
		var p models.CursorPosition
		if err := decode(frame.Data, &p); err != nil {
			return models.Event{}, err
		}
		return models.Event{Type: models.EventCursorMoved, Data: models.CursorMovedPayload{
			UserID: userID, Line: p.Line, Column: p.Column,
		}}, nil

	case models.FrameSelection:
		var p models.SelectionUpdate
		if err := decode(frame.Data, &p); err != nil {
			return models.Event{}, err
		}
		return models.Event{Type: models.EventSelectionChanged, Data: models.SelectionChangedPayload{
			UserID: userID, Selection: p.Selection, Color: p.Color,
		}}, nil

	case models.FrameTestResults:
		payload := frame.Data
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		return models.Event{Type: models.EventTestResultsUpdated, Data: models.TestResultsPayload{
			UserID: userID, Payload: payload,
		}}, nil

	case models.FrameRoleSwitched:
		return models.Event{Type: models.EventRoleSwitched, Data: models.PresencePayload{UserID: userID}}, nil

	case models.FrameQuestionChanged:
		var p models.QuestionChange
		if err := decode(frame.Data, &p); err != nil {
			return models.Event{}, err
		}
		return models.Event{Type: models.EventQuestionChanged, Data: models.QuestionChangedPayload{
			UserID: userID, QuestionID: p.QuestionID,
		}}, nil
	}
	return models.Event{}, fmt.Errorf("unknown frame type %q", frame.Type)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing frame data")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid frame data: %w", err)
	}
	return nil
}

func errorEvent(msg string) models.Event {
	return models.Event{Type: models.EventError, Data: map[string]string{"message": msg}}
}
