package match_management

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/repositories"
)

const (
	// MatchHandshakeTimeout is how long both sides have to confirm a match.
	MatchHandshakeTimeout = 15 * time.Second

	maxAttempts = 5
	sweepBatch  = 100
)

// Notifier delivers server-originated events to everyone connected to a session.
type Notifier interface {
	Notify(sessionID string, event models.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, models.Event) {}

// Coordinator drives the two-sided matching handshake for scheduled sessions.
type Coordinator struct {
	store     repositories.Store
	notifier  Notifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewCoordinator(store repositories.Store, publisher events.Publisher, logger *zap.Logger) *Coordinator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:     store,
		notifier:  nopNotifier{},
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier wires the realtime hub. The hub itself depends on the
// coordinator, so it is attached after construction.
func (c *Coordinator) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	c.notifier = n
}

// canJoin reports whether userID may take part in matching for s. While the
// interviewee seat is open anyone may offer to fill it.
func canJoin(s *models.ScheduledSession, userID string) bool {
	return s.IsParticipant(userID) || s.HasOpenSlot()
}

// pairable reports whether a and b form a valid pairing for s: two distinct
// users, one of them the interviewer.
func pairable(s *models.ScheduledSession, a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	if a != s.InterviewerID && b != s.InterviewerID {
		return false
	}
	if s.HasOpenSlot() {
		return true
	}
	return s.IsParticipant(a) && s.IsParticipant(b)
}

// retry runs op until it stops losing compare-and-swap races.
func retry[T any](op func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := op()
		if errors.Is(err, repositories.ErrStale) {
			continue
		}
		return res, err
	}
	return zero, apperr.Conflict("too much contention, try again")
}

// StartMatching enters callerID into the handshake for sessionID. The caller
// either gets back its own active request, pairs with the counterpart's
// pending request, or opens a new pending request.
func (c *Coordinator) StartMatching(ctx context.Context, sessionID, callerID string) (*models.MatchingStartedResult, error) {
	out, err := retry(func() (*startOutcome, error) {
		return c.startMatchingOnce(ctx, sessionID, callerID)
	})
	if err != nil {
		return nil, repositories.AsAppError(err, "session")
	}

	for i := range out.replaced {
		c.afterExpire(&out.replaced[i])
	}
	res := out.result
	switch {
	case res.Created:
		metrics.MatchingTransitions.WithLabelValues(string(models.MatchingPending)).Inc()
		c.logger.Info("matching request opened",
			zap.String("session_id", sessionID),
			zap.String("request_id", res.Request.ID),
			zap.String("user_id", callerID))
	case out.paired:
		metrics.MatchingTransitions.WithLabelValues(string(models.MatchingMatched)).Inc()
		c.logger.Info("matching request paired",
			zap.String("session_id", sessionID),
			zap.String("request_id", res.Request.ID),
			zap.Strings("users", res.Request.Users()))
		c.notifier.Notify(sessionID, models.Event{
			Type: models.EventMatchFound,
			Data: models.MatchPayload{SessionID: sessionID, Request: res.Request},
		})
	}
	return res, nil
}

type startOutcome struct {
	result   *models.MatchingStartedResult
	paired   bool
	replaced []models.MatchingRequest
}

func (c *Coordinator) startMatchingOnce(ctx context.Context, sessionID, callerID string) (*startOutcome, error) {
	out := &startOutcome{}
	err := c.store.Atomic(ctx, func(tx repositories.Store) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.Status.Matchable() {
			return apperr.InvalidState("session is %s, matching is not possible", s.Status)
		}
		if !canJoin(s, callerID) {
			return apperr.InvalidState("user is not a participant of this session")
		}

		active, err := tx.ActiveMatchingRequests(ctx, sessionID)
		if err != nil {
			return err
		}
		for i := range active {
			if active[i].Involves(callerID) {
				req := active[i]
				out.result = &models.MatchingStartedResult{Request: &req, Matched: req.Status == models.MatchingMatched}
				return nil
			}
		}

		now := c.now()
		for i := range active {
			req := active[i]
			if req.Status != models.MatchingPending || !pairable(s, req.RequestingUserID, callerID) {
				continue
			}
			expires := now.Add(MatchHandshakeTimeout)
			req.MatchedUserID = &callerID
			req.Status = models.MatchingMatched
			req.MatchedAt = &now
			req.ExpiresAt = &expires
			if err := tx.UpdateMatchingRequest(ctx, &req); err != nil {
				return err
			}
			out.result = &models.MatchingStartedResult{Request: &req, Matched: true}
			out.paired = true
			return nil
		}
		// An open seat has at most one standing offer from a non-interviewer.
		// A newer offer replaces it; anything else still holds the lock.
		for i := range active {
			req := active[i]
			if req.Status != models.MatchingPending || req.RequestingUserID == s.InterviewerID || callerID == s.InterviewerID {
				return apperr.InvalidState("another matching handshake is already in progress")
			}
		}
		for i := range active {
			req := active[i]
			req.Status = models.MatchingExpired
			if err := tx.UpdateMatchingRequest(ctx, &req); err != nil {
				return err
			}
			out.replaced = append(out.replaced, req)
		}

		// The session write serializes concurrent creators: only one of them
		// gets past the version check.
		if s.Status == models.SessionScheduled {
			s.Status = models.SessionMatching
		}
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		req := &models.MatchingRequest{
			ID:               uuid.New().String(),
			SessionID:        sessionID,
			RequestingUserID: callerID,
			Status:           models.MatchingPending,
			CreatedAt:        now,
		}
		if err := tx.CreateMatchingRequest(ctx, req); err != nil {
			return err
		}
		out.result = &models.MatchingStartedResult{Request: req, Created: true}
		return nil
	})
	return out, err
}

// GetMatchingStatus returns the caller's active request, else its most recent
// one. A nil request with a nil error means the caller never matched here.
func (c *Coordinator) GetMatchingStatus(ctx context.Context, sessionID, callerID string) (*models.MatchingRequest, error) {
	if _, err := c.store.GetSession(ctx, sessionID); err != nil {
		return nil, repositories.AsAppError(err, "session")
	}
	active, err := c.store.ActiveMatchingRequests(ctx, sessionID)
	if err != nil {
		return nil, repositories.AsAppError(err, "matching request")
	}
	for i := range active {
		if active[i].Involves(callerID) {
			return &active[i], nil
		}
	}
	req, err := c.store.LatestMatchingRequestFor(ctx, sessionID, callerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, repositories.AsAppError(err, "matching request")
	}
	return req, nil
}

type confirmOutcome struct {
	result  *models.ConfirmResult
	started bool
	expired *models.MatchingRequest
}

// ConfirmMatch records callerID's confirmation. Once both users confirmed the
// request becomes Confirmed and the session goes live in the same transaction.
func (c *Coordinator) ConfirmMatch(ctx context.Context, requestID, callerID string) (*models.ConfirmResult, error) {
	out, err := retry(func() (*confirmOutcome, error) {
		return c.confirmOnce(ctx, requestID, callerID)
	})
	if err != nil {
		return nil, repositories.AsAppError(err, "matching request")
	}

	if out.expired != nil {
		c.afterExpire(out.expired)
		return nil, apperr.InvalidState("confirmation window has passed")
	}
	if out.started {
		metrics.MatchingTransitions.WithLabelValues(string(models.MatchingConfirmed)).Inc()
		metrics.SessionTransitions.WithLabelValues(string(models.SessionInProgress)).Inc()
		c.logger.Info("match confirmed, session started",
			zap.String("session_id", out.result.Session.ID),
			zap.String("request_id", requestID))
		c.notifier.Notify(out.result.Session.ID, models.Event{
			Type: models.EventMatchConfirmed,
			Data: models.MatchPayload{SessionID: out.result.Session.ID, Request: out.result.Request},
		})
		if err := c.publisher.MatchConfirmed(ctx, out.result.Session, out.result.Request); err != nil {
			c.logger.Warn("failed to publish match confirmation",
				zap.String("session_id", out.result.Session.ID), zap.Error(err))
		}
	}
	return out.result, nil
}

func (c *Coordinator) confirmOnce(ctx context.Context, requestID, callerID string) (*confirmOutcome, error) {
	out := &confirmOutcome{}
	err := c.store.Atomic(ctx, func(tx repositories.Store) error {
		req, err := tx.GetMatchingRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.Involves(callerID) {
			return apperr.Unauthorized("user is not part of this match")
		}

		switch req.Status {
		case models.MatchingConfirmed:
			s, err := tx.GetSession(ctx, req.SessionID)
			if err != nil {
				return err
			}
			out.result = &models.ConfirmResult{Request: req, Session: s, Started: true}
			return nil
		case models.MatchingPending:
			return apperr.InvalidState("no counterpart has been found yet")
		case models.MatchingExpired, models.MatchingCancelled:
			return apperr.InvalidState("matching request is %s", req.Status)
		}

		now := c.now()
		if req.ExpiresAt == nil || !now.Before(*req.ExpiresAt) {
			if err := c.expireLocked(ctx, tx, req); err != nil {
				return err
			}
			out.expired = req
			return nil
		}

		if req.RequestingUserID == callerID {
			req.UserConfirmed = true
		} else {
			req.MatchedUserConfirmed = true
		}
		if !req.BothConfirmed() {
			if err := tx.UpdateMatchingRequest(ctx, req); err != nil {
				return err
			}
			out.result = &models.ConfirmResult{Request: req}
			return nil
		}

		s, err := tx.GetSession(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if !models.CanTransition(s.Status, models.SessionInProgress) {
			return apperr.InvalidState("session is %s and cannot start", s.Status)
		}
		req.Status = models.MatchingConfirmed
		if err := tx.UpdateMatchingRequest(ctx, req); err != nil {
			return err
		}
		if s.HasOpenSlot() {
			for _, u := range req.Users() {
				if u != s.InterviewerID {
					interviewee := u
					s.IntervieweeID = &interviewee
				}
			}
		}
		s.Status = models.SessionInProgress
		s.StartedAt = &now
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		out.result = &models.ConfirmResult{Request: req, Session: s, Started: true}
		out.started = true
		return nil
	})
	return out, err
}

// ExpireMatchIfNotConfirmed expires a Matched request whose confirmation
// window has elapsed. Only one concurrent caller performs the transition and
// sees Expired=true.
func (c *Coordinator) ExpireMatchIfNotConfirmed(ctx context.Context, requestID, callerID string) (*models.ExpireResult, error) {
	return c.expire(ctx, requestID, func(req *models.MatchingRequest) error {
		if !req.Involves(callerID) {
			return apperr.Unauthorized("user is not part of this match")
		}
		return nil
	})
}

func (c *Coordinator) expire(ctx context.Context, requestID string, authorize func(*models.MatchingRequest) error) (*models.ExpireResult, error) {
	type outcome struct {
		result *models.ExpireResult
		req    *models.MatchingRequest
	}
	out, err := retry(func() (*outcome, error) {
		o := &outcome{}
		err := c.store.Atomic(ctx, func(tx repositories.Store) error {
			req, err := tx.GetMatchingRequest(ctx, requestID)
			if err != nil {
				return err
			}
			if authorize != nil {
				if err := authorize(req); err != nil {
					return err
				}
			}
			if req.Status != models.MatchingMatched {
				o.result = &models.ExpireResult{Message: "matching request is " + string(req.Status)}
				return nil
			}
			if req.MatchedAt != nil && c.now().Sub(*req.MatchedAt) < MatchHandshakeTimeout {
				o.result = &models.ExpireResult{Message: "confirmation window is still open"}
				return nil
			}
			if err := c.expireLocked(ctx, tx, req); err != nil {
				return err
			}
			o.result = &models.ExpireResult{Expired: true, Message: "match expired"}
			o.req = req
			return nil
		})
		return o, err
	})
	if err != nil {
		return nil, repositories.AsAppError(err, "matching request")
	}
	if out.req != nil {
		c.afterExpire(out.req)
	}
	return out.result, nil
}

// expireLocked marks req Expired and hands the session back to Scheduled.
// It must run inside the caller's transaction.
func (c *Coordinator) expireLocked(ctx context.Context, tx repositories.Store, req *models.MatchingRequest) error {
	req.Status = models.MatchingExpired
	if err := tx.UpdateMatchingRequest(ctx, req); err != nil {
		return err
	}
	s, err := tx.GetSession(ctx, req.SessionID)
	if err != nil {
		return err
	}
	if s.Status != models.SessionMatching {
		return nil
	}
	s.Status = models.SessionScheduled
	return tx.UpdateSession(ctx, s)
}

func (c *Coordinator) afterExpire(req *models.MatchingRequest) {
	metrics.MatchingTransitions.WithLabelValues(string(models.MatchingExpired)).Inc()
	c.logger.Info("matching request expired",
		zap.String("session_id", req.SessionID),
		zap.String("request_id", req.ID))
	c.notifier.Notify(req.SessionID, models.Event{
		Type: models.EventMatchExpired,
		Data: models.MatchPayload{SessionID: req.SessionID, Request: req},
	})
}

// ExpireAllRequestsForSession expires every active request of the session
// regardless of the confirmation window. It returns how many it expired.
func (c *Coordinator) ExpireAllRequestsForSession(ctx context.Context, sessionID, callerID string) (int, error) {
	expired, err := retry(func() ([]*models.MatchingRequest, error) {
		var expired []*models.MatchingRequest
		err := c.store.Atomic(ctx, func(tx repositories.Store) error {
			s, err := tx.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			active, err := tx.ActiveMatchingRequests(ctx, sessionID)
			if err != nil {
				return err
			}
			if !s.IsParticipant(callerID) && !involvedInAny(active, callerID) {
				return apperr.Unauthorized("user is not part of this session")
			}
			for i := range active {
				req := active[i]
				req.Status = models.MatchingExpired
				if err := tx.UpdateMatchingRequest(ctx, &req); err != nil {
					return err
				}
				expired = append(expired, &req)
			}
			if len(expired) > 0 && s.Status == models.SessionMatching {
				s.Status = models.SessionScheduled
				return tx.UpdateSession(ctx, s)
			}
			return nil
		})
		return expired, err
	})
	if err != nil {
		return 0, repositories.AsAppError(err, "session")
	}
	for _, req := range expired {
		c.afterExpire(req)
	}
	return len(expired), nil
}

func involvedInAny(reqs []models.MatchingRequest, userID string) bool {
	for i := range reqs {
		if reqs[i].Involves(userID) {
			return true
		}
	}
	return false
}

// SweepExpired expires every Matched request whose deadline has passed.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	overdue, err := c.store.OverdueMatchingRequests(ctx, c.now(), sweepBatch)
	if err != nil {
		return 0, repositories.AsAppError(err, "matching request")
	}
	count := 0
	for _, req := range overdue {
		res, err := c.expire(ctx, req.ID, nil)
		if err != nil {
			c.logger.Warn("failed to expire overdue match", zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		if res.Expired {
			count++
		}
	}
	return count, nil
}
