package models

import "time"

type MatchingStatus string

const (
	MatchingPending   MatchingStatus = "Pending"
	MatchingMatched   MatchingStatus = "Matched"
	MatchingConfirmed MatchingStatus = "Confirmed"
	MatchingExpired   MatchingStatus = "Expired"
	MatchingCancelled MatchingStatus = "Cancelled"
)

// Active reports whether the request still holds the session's matching lock.
func (s MatchingStatus) Active() bool {
	return s == MatchingPending || s == MatchingMatched
}

// MatchingRequest is one attempt to pair the two participants of a session.
type MatchingRequest struct {
	ID                   string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID            string         `gorm:"size:36;not null;index" json:"sessionId"`
	RequestingUserID     string         `gorm:"size:64;not null" json:"requestingUserId"`
	MatchedUserID        *string        `gorm:"size:64" json:"matchedUserId"`
	Status               MatchingStatus `gorm:"size:20;not null;index" json:"status"`
	UserConfirmed        bool           `gorm:"not null;default:false" json:"userConfirmed"`
	MatchedUserConfirmed bool           `gorm:"not null;default:false" json:"matchedUserConfirmed"`
	MatchedAt            *time.Time     `json:"matchedAt,omitempty"`
	ExpiresAt            *time.Time     `json:"expiresAt,omitempty"`
	Version              int64          `gorm:"not null;default:0" json:"version"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

func (MatchingRequest) TableName() string { return "matching_requests" }

// Involves reports whether userID is the requester or the matched user.
func (r *MatchingRequest) Involves(userID string) bool {
	if userID == "" {
		return false
	}
	return r.RequestingUserID == userID || (r.MatchedUserID != nil && *r.MatchedUserID == userID)
}

// BothConfirmed reports whether the handshake is complete.
func (r *MatchingRequest) BothConfirmed() bool {
	return r.UserConfirmed && r.MatchedUserConfirmed
}

// Users returns the requester and, when matched, the counterpart.
func (r *MatchingRequest) Users() []string {
	users := []string{r.RequestingUserID}
	if r.MatchedUserID != nil {
		users = append(users, *r.MatchedUserID)
	}
	return users
}

type MatchingStartedResult struct {
	Request *MatchingRequest `json:"request"`
	Matched bool             `json:"matched"`
	// Created is false when an existing active request was reused.
	Created bool `json:"created"`
}

type ConfirmResult struct {
	Request *MatchingRequest  `json:"request"`
	Session *ScheduledSession `json:"session,omitempty"`
	// Started is true once both sides confirmed and the session is live.
	Started bool `json:"started"`
}

type ExpireResult struct {
	Expired bool   `json:"expired"`
	Message string `json:"message"`
}
