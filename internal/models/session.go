package models

import "time"

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "Scheduled"
	SessionMatching   SessionStatus = "Matching"
	SessionInProgress SessionStatus = "InProgress"
	SessionCompleted  SessionStatus = "Completed"
	SessionCancelled  SessionStatus = "Cancelled"
)

// transitions lists every legal status change. InProgress is only reachable
// from a confirmed match, which is the only caller that asks for it.
var transitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionMatching, SessionInProgress, SessionCancelled},
	SessionMatching:   {SessionScheduled, SessionInProgress, SessionCancelled},
	SessionInProgress: {SessionCompleted},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Matchable reports whether a matching handshake may run for the status.
func (s SessionStatus) Matchable() bool {
	return s == SessionScheduled || s == SessionMatching
}

// ScheduledSession is the durable record of an interview slot. The role
// columns (interviewer/interviewee) may swap once live; the participant set
// may not.
type ScheduledSession struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	InterviewerID   string        `gorm:"size:64;not null;index" json:"interviewerId"`
	IntervieweeID   *string       `gorm:"size:64;index" json:"intervieweeId"`
	QuestionID      *string       `gorm:"size:64" json:"questionId"`
	ScheduledTime   time.Time     `json:"scheduledTime"`
	DurationMinutes int           `json:"durationMinutes"`
	InterviewType   string        `gorm:"size:50" json:"interviewType"`
	PracticeType    string        `gorm:"size:50" json:"practiceType"`
	InterviewLevel  string        `gorm:"size:50" json:"interviewLevel"`
	Status          SessionStatus `gorm:"size:20;not null;index" json:"status"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
	Version         int64         `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (ScheduledSession) TableName() string { return "scheduled_sessions" }

// IsParticipant reports whether userID holds either role in the session.
func (s *ScheduledSession) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return s.InterviewerID == userID || (s.IntervieweeID != nil && *s.IntervieweeID == userID)
}

// HasOpenSlot reports whether the interviewee seat is still unclaimed.
func (s *ScheduledSession) HasOpenSlot() bool {
	return s.IntervieweeID == nil || *s.IntervieweeID == ""
}

// Counterpart returns the other participant's id, or "" if there is none.
func (s *ScheduledSession) Counterpart(userID string) string {
	switch {
	case s.InterviewerID == userID && s.IntervieweeID != nil:
		return *s.IntervieweeID
	case s.IntervieweeID != nil && *s.IntervieweeID == userID:
		return s.InterviewerID
	}
	return ""
}

// LiveSessionView is the projection of a session once it is InProgress.
type LiveSessionView struct {
	SessionID        string     `json:"sessionId"`
	InterviewerID    string     `json:"interviewerId"`
	IntervieweeID    string     `json:"intervieweeId"`
	ActiveQuestionID *string    `json:"activeQuestionId"`
	StartedAt        *time.Time `json:"startedAt"`
}

// LiveView projects the session. Callers check the status first.
func (s *ScheduledSession) LiveView() LiveSessionView {
	v := LiveSessionView{
		SessionID:        s.ID,
		InterviewerID:    s.InterviewerID,
		ActiveQuestionID: s.QuestionID,
		StartedAt:        s.StartedAt,
	}
	if s.IntervieweeID != nil {
		v.IntervieweeID = *s.IntervieweeID
	}
	return v
}

// ScheduleReq is the body of a schedule call.
type ScheduleReq struct {
	ScheduledTime   time.Time `json:"scheduledTime"`
	DurationMinutes int       `json:"durationMinutes"`
	InterviewType   string    `json:"interviewType"`
	PracticeType    string    `json:"practiceType"`
	InterviewLevel  string    `json:"interviewLevel"`
	QuestionID      *string   `json:"questionId,omitempty"`
}

type InviteReq struct {
	UserID string `json:"userId"`
}

type ChangeQuestionReq struct {
	QuestionID *string `json:"questionId,omitempty"`
}

// EndResult reports whether this call performed the Completed transition or
// observed one that already happened.
type EndResult struct {
	Session *ScheduledSession `json:"session"`
	Ended   bool              `json:"ended"`
}
