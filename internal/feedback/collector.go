package feedback

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/repositories"
)

// Collector stores the peer reviews participants write once a session has
// completed. Each participant may review the other exactly once.
type Collector struct {
	store  repositories.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCollector(store repositories.Store, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SubmitFeedback records the reviewer's feedback about the other participant.
func (c *Collector) SubmitFeedback(ctx context.Context, reviewerID string, req models.SubmitFeedbackReq) (*models.InterviewFeedback, error) {
	if strings.TrimSpace(req.LiveSessionID) == "" {
		return nil, apperr.Validation("liveSessionId is required")
	}
	for _, r := range req.Ratings() {
		if r.Value < models.MinRating || r.Value > models.MaxRating {
			return nil, apperr.Validation("%s must be between %d and %d", r.Name, models.MinRating, models.MaxRating)
		}
	}

	session, err := c.store.GetSession(ctx, req.LiveSessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !session.IsParticipant(reviewerID) {
		return nil, apperr.Unauthorized("only participants can review a session")
	}
	if session.Status != models.SessionCompleted {
		return nil, apperr.InvalidState("feedback opens once the session is completed (status %s)", session.Status)
	}

	reviewee := session.Counterpart(reviewerID)
	if reviewee == "" {
		return nil, apperr.InvalidState("session has no second participant")
	}
	if req.RevieweeID != "" && req.RevieweeID != reviewee {
		return nil, apperr.Validation("revieweeId must be the other participant")
	}

	exists, err := c.store.FeedbackExists(ctx, session.ID, reviewerID)
	if err != nil {
		return nil, repositories.AsAppError(err, "feedback")
	}
	if exists {
		return nil, apperr.InvalidState("feedback already submitted for this session")
	}

	fb := &models.InterviewFeedback{
		ID:                                uuid.New().String(),
		LiveSessionID:                     session.ID,
		ReviewerID:                        reviewerID,
		RevieweeID:                        reviewee,
		ProblemSolvingRating:              req.ProblemSolvingRating,
		ProblemSolvingDescription:         req.ProblemSolvingDescription,
		CodingSkillsRating:                req.CodingSkillsRating,
		CodingSkillsDescription:           req.CodingSkillsDescription,
		CommunicationRating:               req.CommunicationRating,
		CommunicationDescription:          req.CommunicationDescription,
		InterviewerPerformanceRating:      req.InterviewerPerformanceRating,
		InterviewerPerformanceDescription: req.InterviewerPerformanceDescription,
		OverallRating:                     req.OverallRating,
		OverallDescription:                req.OverallDescription,
		DidWell:                           req.DidWell,
		ThingsToImprove:                   req.ThingsToImprove,
		CreatedAt:                         c.now(),
	}
	if err := c.store.CreateFeedback(ctx, fb); err != nil {
		// two submissions raced past FeedbackExists
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.InvalidState("feedback already submitted for this session")
		}
		c.logger.Error("failed to store feedback", zap.String("session_id", session.ID), zap.Error(err))
		return nil, repositories.AsAppError(err, "feedback")
	}

	c.logger.Info("feedback submitted",
		zap.String("session_id", session.ID),
		zap.String("reviewer_id", reviewerID),
		zap.Int("overall_rating", fb.OverallRating))
	return fb, nil
}

// GetFeedbackForSession lists every review written for the session.
func (c *Collector) GetFeedbackForSession(ctx context.Context, sessionID, callerID string) ([]models.InterviewFeedback, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !session.IsParticipant(callerID) {
		return nil, apperr.Unauthorized("only participants can read a session's feedback")
	}
	list, err := c.store.ListFeedbackForSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "feedback")
	}
	return list, nil
}

func (c *Collector) GetFeedback(ctx context.Context, id, callerID string) (*models.InterviewFeedback, error) {
	fb, err := c.store.GetFeedback(ctx, id)
	if err != nil {
		return nil, repositories.AsAppError(err, "feedback")
	}
	session, err := c.store.GetSession(ctx, fb.LiveSessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !session.IsParticipant(callerID) {
		return nil, apperr.Unauthorized("only participants can read a session's feedback")
	}
	return fb, nil
}
