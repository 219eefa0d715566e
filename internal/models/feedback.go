package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// InterviewFeedback is a one-sided peer review written after a session ends.
// One row per (live session, reviewer).
type InterviewFeedback struct {
	ID                                string    `gorm:"primaryKey;size:36" json:"id"`
	LiveSessionID                     string    `gorm:"size:36;not null;uniqueIndex:idx_feedback_session_reviewer" json:"liveSessionId"`
	ReviewerID                        string    `gorm:"size:64;not null;uniqueIndex:idx_feedback_session_reviewer" json:"reviewerId"`
	RevieweeID                        string    `gorm:"size:64;not null;index" json:"revieweeId"`
	ProblemSolvingRating              int       `json:"problemSolvingRating"`
	ProblemSolvingDescription         string    `gorm:"type:text" json:"problemSolvingDescription"`
	CodingSkillsRating                int       `json:"codingSkillsRating"`
	CodingSkillsDescription           string    `gorm:"type:text" json:"codingSkillsDescription"`
	CommunicationRating               int       `json:"communicationRating"`
	CommunicationDescription          string    `gorm:"type:text" json:"communicationDescription"`
	InterviewerPerformanceRating      int       `json:"interviewerPerformanceRating"`
	InterviewerPerformanceDescription string    `gorm:"type:text" json:"interviewerPerformanceDescription"`
	OverallRating                     int       `json:"overallRating"`
	OverallDescription                string    `gorm:"type:text" json:"overallDescription"`
	DidWell                           string    `gorm:"type:text" json:"didWell"`
	ThingsToImprove                   string    `gorm:"type:text" json:"thingsToImprove"`
	CreatedAt                         time.Time `json:"createdAt"`
}

func (InterviewFeedback) TableName() string { return "interview_feedbacks" }

// SubmitFeedbackReq is the payload a reviewer sends. RevieweeID is optional;
// when present it must name the other participant.
type SubmitFeedbackReq struct {
	LiveSessionID                     string `json:"liveSessionId"`
	RevieweeID                        string `json:"revieweeId,omitempty"`
	ProblemSolvingRating              int    `json:"problemSolvingRating"`
	ProblemSolvingDescription         string `json:"problemSolvingDescription"`
	CodingSkillsRating                int    `json:"codingSkillsRating"`
	CodingSkillsDescription           string `json:"codingSkillsDescription"`
	CommunicationRating               int    `json:"communicationRating"`
	CommunicationDescription          string `json:"communicationDescription"`
	InterviewerPerformanceRating      int    `json:"interviewerPerformanceRating"`
	InterviewerPerformanceDescription string `json:"interviewerPerformanceDescription"`
	OverallRating                     int    `json:"overallRating"`
	OverallDescription                string `json:"overallDescription"`
	DidWell                           string `json:"didWell"`
	ThingsToImprove                   string `json:"thingsToImprove"`
}

type RatingField struct {
	Name  string
	Value int
}

// Ratings returns each rating keyed by its JSON field name, in a stable order.
func (r *SubmitFeedbackReq) Ratings() []RatingField {
	return []RatingField{
		{"problemSolvingRating", r.ProblemSolvingRating},
		{"codingSkillsRating", r.CodingSkillsRating},
		{"communicationRating", r.CommunicationRating},
		{"interviewerPerformanceRating", r.InterviewerPerformanceRating},
		{"overallRating", r.OverallRating},
	}
}
