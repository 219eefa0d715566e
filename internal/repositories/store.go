package repositories

import (
	"context"
	"errors"
	"time"

	"peerprep/interview/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrStale     = errors.New("record was modified concurrently")
	ErrDuplicate = errors.New("record already exists")
)

// Store is the persistence contract of the interview subsystem. Every Update
// is a compare-and-swap on the record's Version: the write only lands if the
// stored version still equals the one the caller read, and on success the
// caller's copy is bumped. A lost race returns ErrStale.
type Store interface {
	// Atomic runs fn against a Store bound to a single transaction.
	Atomic(ctx context.Context, fn func(Store) error) error

	CreateSession(ctx context.Context, s *models.ScheduledSession) error
	GetSession(ctx context.Context, id string) (*models.ScheduledSession, error)
	UpdateSession(ctx context.Context, s *models.ScheduledSession) error
	ListOpenSessions(ctx context.Context, from time.Time, limit int) ([]models.ScheduledSession, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]models.ScheduledSession, error)

	CreateMatchingRequest(ctx context.Context, r *models.MatchingRequest) error
	GetMatchingRequest(ctx context.Context, id string) (*models.MatchingRequest, error)
	UpdateMatchingRequest(ctx context.Context, r *models.MatchingRequest) error
	ActiveMatchingRequests(ctx context.Context, sessionID string) ([]models.MatchingRequest, error)
	LatestMatchingRequestFor(ctx context.Context, sessionID, userID string) (*models.MatchingRequest, error)
	OverdueMatchingRequests(ctx context.Context, before time.Time, limit int) ([]models.MatchingRequest, error)

	CreateFeedback(ctx context.Context, f *models.InterviewFeedback) error
	GetFeedback(ctx context.Context, id string) (*models.InterviewFeedback, error)
	ListFeedbackForSession(ctx context.Context, sessionID string) ([]models.InterviewFeedback, error)
	FeedbackExists(ctx context.Context, sessionID, reviewerID string) (bool, error)
}
