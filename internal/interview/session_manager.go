package interview

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/questions"
	"peerprep/interview/internal/repositories"
)

const (
	maxAttempts         = 5
	defaultOpenListSize = 50
	maxDurationMinutes  = 240
)

// Notifier delivers server-originated events to a session's connections.
type Notifier interface {
	Notify(sessionID string, event models.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, models.Event) {}

// SessionManager owns the lifecycle of scheduled sessions once they exist:
// scheduling, invitations, role and question changes, ending and cancelling.
// Going live is the matching coordinator's job.
type SessionManager struct {
	store     repositories.Store
	picker    questions.Picker
	publisher events.Publisher
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewSessionManager(store repositories.Store, picker questions.Picker, publisher events.Publisher, logger *zap.Logger) *SessionManager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:     store,
		picker:    picker,
		publisher: publisher,
		notifier:  nopNotifier{},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *SessionManager) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.notifier = n
}

// ScheduleSession creates a session with the caller as interviewer.
func (m *SessionManager) ScheduleSession(ctx context.Context, callerID string, req models.ScheduleReq) (*models.ScheduledSession, error) {
	if req.ScheduledTime.IsZero() {
		return nil, apperr.Validation("scheduledTime is required")
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > maxDurationMinutes {
		return nil, apperr.Validation("durationMinutes must be between 1 and %d", maxDurationMinutes)
	}
	if strings.TrimSpace(req.InterviewType) == "" {
		return nil, apperr.Validation("interviewType is required")
	}

	s := &models.ScheduledSession{
		ID:              uuid.New().String(),
		InterviewerID:   callerID,
		ScheduledTime:   req.ScheduledTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		InterviewType:   req.InterviewType,
		PracticeType:    req.PracticeType,
		InterviewLevel:  req.InterviewLevel,
		Status:          models.SessionScheduled,
	}
	if req.QuestionID != nil && *req.QuestionID != "" {
		q := *req.QuestionID
		s.QuestionID = &q
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	metrics.SessionTransitions.WithLabelValues(string(models.SessionScheduled)).Inc()
	m.logger.Info("session scheduled",
		zap.String("session_id", s.ID),
		zap.String("interviewer_id", callerID),
		zap.Time("scheduled_time", s.ScheduledTime))
	return s, nil
}

// InviteParticipant fills the interviewee seat directly, skipping the open
// matching pool.
func (m *SessionManager) InviteParticipant(ctx context.Context, sessionID, callerID, userID string) (*models.ScheduledSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("userId is required")
	}
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if s.InterviewerID != callerID {
		return nil, apperr.Unauthorized("only the interviewer can invite")
	}
	if userID == s.InterviewerID {
		return nil, apperr.Validation("cannot invite yourself")
	}
	if s.Status != models.SessionScheduled {
		return nil, apperr.InvalidState("session is %s, invitations are closed", s.Status)
	}
	if !s.HasOpenSlot() {
		return nil, apperr.InvalidState("session already has an interviewee")
	}
	s.IntervieweeID = &userID
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	m.logger.Info("participant invited", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, nil
}

// GetSession returns a session to its participants, or to anyone while the
// interviewee seat is still up for grabs.
func (m *SessionManager) GetSession(ctx context.Context, sessionID, callerID string) (*models.ScheduledSession, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !s.IsParticipant(callerID) && !(s.HasOpenSlot() && s.Status.Matchable()) {
		return nil, apperr.Unauthorized("user is not part of this session")
	}
	return s, nil
}

// ListOpenSessions lists upcoming sessions still looking for an interviewee.
func (m *SessionManager) ListOpenSessions(ctx context.Context, limit int) ([]models.ScheduledSession, error) {
	if limit <= 0 || limit > defaultOpenListSize {
		limit = defaultOpenListSize
	}
	sessions, err := m.store.ListOpenSessions(ctx, m.now(), limit)
	if err != nil {
		return nil, repositories.AsAppError(err, "sessions")
	}
	return sessions, nil
}

func (m *SessionManager) ListSessionsForUser(ctx context.Context, userID string) ([]models.ScheduledSession, error) {
	sessions, err := m.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, repositories.AsAppError(err, "sessions")
	}
	return sessions, nil
}

// GetLiveSession projects an InProgress session for one of its participants.
func (m *SessionManager) GetLiveSession(ctx context.Context, sessionID, callerID string) (*models.LiveSessionView, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !s.IsParticipant(callerID) {
		return nil, apperr.Unauthorized("user is not part of this session")
	}
	if s.Status != models.SessionInProgress {
		return nil, apperr.InvalidState("session is %s, not live", s.Status)
	}
	view := s.LiveView()
	return &view, nil
}

// SwitchRoles swaps interviewer and interviewee. The active question stays.
// A concurrent write surfaces as Conflict and is not retried.
func (m *SessionManager) SwitchRoles(ctx context.Context, sessionID, callerID string) (*models.LiveSessionView, error) {
	s, err := m.liveSessionFor(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if s.HasOpenSlot() {
		return nil, apperr.InvalidState("session has no interviewee to switch with")
	}

	interviewee := *s.IntervieweeID
	interviewer := s.InterviewerID
	s.InterviewerID = interviewee
	s.IntervieweeID = &interviewer
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return nil, repositories.AsAppError(err, "session")
	}

	view := s.LiveView()
	m.logger.Info("roles switched",
		zap.String("session_id", s.ID),
		zap.String("interviewer_id", view.InterviewerID),
		zap.String("interviewee_id", view.IntervieweeID))
	m.notifier.Notify(s.ID, models.Event{
		Type: models.EventRoleSwitched,
		Data: models.PresencePayload{UserID: callerID},
	})
	return &view, nil
}

// ChangeQuestion sets the active question. Only the current interviewer may
// do so. A nil or empty questionID asks the question service for one.
func (m *SessionManager) ChangeQuestion(ctx context.Context, sessionID, callerID string, questionID *string) (*models.LiveSessionView, error) {
	s, err := m.liveSessionFor(ctx, sessionID, callerID)
	if err != nil {
		return nil, err
	}
	if s.InterviewerID != callerID {
		return nil, apperr.Unauthorized("only the interviewer can change the question")
	}

	next := ""
	if questionID != nil {
		next = strings.TrimSpace(*questionID)
	}
	if next == "" {
		if m.picker == nil {
			return nil, apperr.Validation("questionId is required")
		}
		next, err = m.picker.PickQuestion(ctx, s)
		if err != nil {
			m.logger.Error("failed to pick question", zap.String("session_id", s.ID), zap.Error(err))
			return nil, apperr.Internal("failed to pick a question", err)
		}
	}

	s.QuestionID = &next
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return nil, repositories.AsAppError(err, "session")
	}

	view := s.LiveView()
	m.logger.Info("question changed", zap.String("session_id", s.ID), zap.String("question_id", next))
	m.notifier.Notify(s.ID, models.Event{
		Type: models.EventQuestionChanged,
		Data: models.QuestionChangedPayload{UserID: callerID, QuestionID: next},
	})
	return &view, nil
}

// liveSessionFor loads a session and checks the caller participates and the
// session is live.
func (m *SessionManager) liveSessionFor(ctx context.Context, sessionID, callerID string) (*models.ScheduledSession, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	if !s.IsParticipant(callerID) {
		return nil, apperr.Unauthorized("user is not part of this session")
	}
	if s.Status != models.SessionInProgress {
		return nil, apperr.InvalidState("session is %s, not live", s.Status)
	}
	return s, nil
}

// EndInterview completes a live session. Ending an already completed session
// succeeds with Ended=false, so both sides may end concurrently.
func (m *SessionManager) EndInterview(ctx context.Context, sessionID, callerID string) (*models.EndResult, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		s, err := m.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, repositories.AsAppError(err, "session")
		}
		if !s.IsParticipant(callerID) {
			return nil, apperr.Unauthorized("user is not part of this session")
		}
		if s.Status == models.SessionCompleted {
			return &models.EndResult{Session: s}, nil
		}
		if !models.CanTransition(s.Status, models.SessionCompleted) {
			return nil, apperr.InvalidState("session is %s, not live", s.Status)
		}

		now := m.now()
		s.Status = models.SessionCompleted
		s.EndedAt = &now
		err = m.store.UpdateSession(ctx, s)
		if errors.Is(err, repositories.ErrStale) {
			continue
		}
		if err != nil {
			return nil, repositories.AsAppError(err, "session")
		}

		metrics.SessionTransitions.WithLabelValues(string(models.SessionCompleted)).Inc()
		m.logger.Info("interview ended", zap.String("session_id", s.ID), zap.String("ended_by", callerID))
		m.notifier.Notify(s.ID, models.Event{
			Type: models.EventInterviewEnded,
			Data: models.InterviewEndedPayload{SessionID: s.ID, EndedBy: callerID},
		})
		if err := m.publisher.SessionEnded(ctx, s); err != nil {
			m.logger.Warn("failed to publish session end", zap.String("session_id", s.ID), zap.Error(err))
		}
		return &models.EndResult{Session: s, Ended: true}, nil
	}
	return nil, apperr.Conflict("too much contention, try again")
}

// CancelSession cancels a session that has not gone live, together with any
// matching handshake still running for it.
func (m *SessionManager) CancelSession(ctx context.Context, sessionID, callerID string) (*models.ScheduledSession, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var result *models.ScheduledSession
		cancelled := 0
		changed := false
		err := m.store.Atomic(ctx, func(tx repositories.Store) error {
			s, err := tx.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			if !s.IsParticipant(callerID) {
				return apperr.Unauthorized("user is not part of this session")
			}
			result = s
			if s.Status == models.SessionCancelled {
				return nil
			}
			if !models.CanTransition(s.Status, models.SessionCancelled) {
				return apperr.InvalidState("session is %s and can no longer be cancelled", s.Status)
			}
			active, err := tx.ActiveMatchingRequests(ctx, sessionID)
			if err != nil {
				return err
			}
			for i := range active {
				active[i].Status = models.MatchingCancelled
				if err := tx.UpdateMatchingRequest(ctx, &active[i]); err != nil {
					return err
				}
				cancelled++
			}
			s.Status = models.SessionCancelled
			changed = true
			return tx.UpdateSession(ctx, s)
		})
		if errors.Is(err, repositories.ErrStale) {
			continue
		}
		if err != nil {
			return nil, repositories.AsAppError(err, "session")
		}
		if changed {
			metrics.SessionTransitions.WithLabelValues(string(models.SessionCancelled)).Inc()
			for i := 0; i < cancelled; i++ {
				metrics.MatchingTransitions.WithLabelValues(string(models.MatchingCancelled)).Inc()
			}
			m.logger.Info("session cancelled",
				zap.String("session_id", result.ID),
				zap.String("cancelled_by", callerID),
				zap.Int("matching_requests_cancelled", cancelled))
		}
		return result, nil
	}
	return nil, apperr.Conflict("too much contention, try again")
}

// Authorize decides whether userID may join the session's realtime group:
// participants always, and anyone currently in the session's handshake.
func (m *SessionManager) Authorize(ctx context.Context, sessionID, userID string) error {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return repositories.AsAppError(err, "session")
	}
	if s.Status == models.SessionCancelled {
		return apperr.InvalidState("session is cancelled")
	}
	if s.IsParticipant(userID) {
		return nil
	}
	active, err := m.store.ActiveMatchingRequests(ctx, sessionID)
	if err != nil {
		return repositories.AsAppError(err, "matching request")
	}
	for i := range active {
		if active[i].Involves(userID) {
			return nil
		}
	}
	return apperr.Unauthorized("user is not part of this session")
}
