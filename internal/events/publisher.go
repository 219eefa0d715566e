package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"peerprep/interview/internal/models"
)

// Redis channels other services subscribe to.
const (
	ChannelMatches      = "matches"
	ChannelSessionEnded = "session_ended"
)

// Publisher announces session lifecycle milestones to the rest of the platform.
type Publisher interface {
	MatchConfirmed(ctx context.Context, s *models.ScheduledSession, req *models.MatchingRequest) error
	SessionEnded(ctx context.Context, s *models.ScheduledSession) error
}

type MatchConfirmedEvent struct {
	SessionID         string    `json:"sessionId"`
	MatchingRequestID string    `json:"matchingRequestId"`
	InterviewerID     string    `json:"interviewerId"`
	IntervieweeID     string    `json:"intervieweeId"`
	QuestionID        string    `json:"questionId,omitempty"`
	InterviewType     string    `json:"interviewType"`
	InterviewLevel    string    `json:"interviewLevel"`
	ConfirmedAt       time.Time `json:"confirmedAt"`
}

type SessionEndedEvent struct {
	SessionID     string    `json:"sessionId"`
	InterviewerID string    `json:"interviewerId"`
	IntervieweeID string    `json:"intervieweeId"`
	QuestionID    string    `json:"questionId,omitempty"`
	InterviewType string    `json:"interviewType"`
	StartedAt     time.Time `json:"startedAt"`
	EndedAt       time.Time `json:"endedAt"`
	DurationSec   int       `json:"durationSeconds"`
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) MatchConfirmed(ctx context.Context, s *models.ScheduledSession, req *models.MatchingRequest) error {
	view := s.LiveView()
	event := MatchConfirmedEvent{
		SessionID:         s.ID,
		MatchingRequestID: req.ID,
		InterviewerID:     view.InterviewerID,
		IntervieweeID:     view.IntervieweeID,
		QuestionID:        deref(s.QuestionID),
		InterviewType:     s.InterviewType,
		InterviewLevel:    s.InterviewLevel,
		ConfirmedAt:       req.UpdatedAt,
	}
	return p.publish(ctx, ChannelMatches, event)
}

func (p *RedisPublisher) SessionEnded(ctx context.Context, s *models.ScheduledSession) error {
	view := s.LiveView()
	event := SessionEndedEvent{
		SessionID:     s.ID,
		InterviewerID: view.InterviewerID,
		IntervieweeID: view.IntervieweeID,
		QuestionID:    deref(s.QuestionID),
		InterviewType: s.InterviewType,
	}
	if s.StartedAt != nil {
		event.StartedAt = *s.StartedAt
	}
	if s.EndedAt != nil {
		event.EndedAt = *s.EndedAt
	}
	if s.StartedAt != nil && s.EndedAt != nil {
		event.DurationSec = int(s.EndedAt.Sub(*s.StartedAt).Seconds())
	}
	return p.publish(ctx, ChannelSessionEnded, event)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", channel, err)
	}
	return nil
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) MatchConfirmed(context.Context, *models.ScheduledSession, *models.MatchingRequest) error {
	return nil
}

func (NopPublisher) SessionEnded(context.Context, *models.ScheduledSession) error { return nil }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
