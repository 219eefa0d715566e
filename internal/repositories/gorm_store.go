package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"peerprep/interview/internal/models"
)

// Repository implements Store on gorm.
type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) Atomic(ctx context.Context, fn func(Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{DB: tx})
	})
}

func (r *Repository) CreateSession(ctx context.Context, s *models.ScheduledSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *Repository) GetSession(ctx context.Context, id string) (*models.ScheduledSession, error) {
	var s models.ScheduledSession
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *Repository) UpdateSession(ctx context.Context, s *models.ScheduledSession) error {
	return casUpdate(r.DB.WithContext(ctx), s, &s.Version)
}

// ListOpenSessions returns sessions still waiting for an interviewee.
func (r *Repository) ListOpenSessions(ctx context.Context, from time.Time, limit int) ([]models.ScheduledSession, error) {
	sessions := []models.ScheduledSession{}
	err := r.DB.WithContext(ctx).
		Where("status IN ? AND interviewee_id IS NULL AND scheduled_time >= ?",
			[]models.SessionStatus{models.SessionScheduled, models.SessionMatching}, from).
		Order("scheduled_time ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *Repository) ListSessionsForUser(ctx context.Context, userID string) ([]models.ScheduledSession, error) {
	sessions := []models.ScheduledSession{}
	err := r.DB.WithContext(ctx).
		Where("interviewer_id = ? OR interviewee_id = ?", userID, userID).
		Order("scheduled_time DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *Repository) CreateMatchingRequest(ctx context.Context, m *models.MatchingRequest) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *Repository) GetMatchingRequest(ctx context.Context, id string) (*models.MatchingRequest, error) {
	var m models.MatchingRequest
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *Repository) UpdateMatchingRequest(ctx context.Context, m *models.MatchingRequest) error {
	return casUpdate(r.DB.WithContext(ctx), m, &m.Version)
}

func (r *Repository) ActiveMatchingRequests(ctx context.Context, sessionID string) ([]models.MatchingRequest, error) {
	requests := []models.MatchingRequest{}
	err := r.DB.WithContext(ctx).
		Where("session_id = ? AND status IN ?", sessionID,
			[]models.MatchingStatus{models.MatchingPending, models.MatchingMatched}).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

// LatestMatchingRequestFor returns the most recent request of the session that
// involves userID, in any status.
func (r *Repository) LatestMatchingRequestFor(ctx context.Context, sessionID, userID string) (*models.MatchingRequest, error) {
	var m models.MatchingRequest
	err := r.DB.WithContext(ctx).
		Where("session_id = ? AND (requesting_user_id = ? OR matched_user_id = ?)", sessionID, userID, userID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// OverdueMatchingRequests returns Matched requests whose confirmation deadline
// is at or before the given instant.
func (r *Repository) OverdueMatchingRequests(ctx context.Context, before time.Time, limit int) ([]models.MatchingRequest, error) {
	requests := []models.MatchingRequest{}
	err := r.DB.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.MatchingMatched, before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

func (r *Repository) CreateFeedback(ctx context.Context, f *models.InterviewFeedback) error {
	err := r.DB.WithContext(ctx).Create(f).Error
	if err == nil {
		return nil
	}
	// The unique index is the backstop for a racing duplicate.
	if exists, checkErr := r.FeedbackExists(ctx, f.LiveSessionID, f.ReviewerID); checkErr == nil && exists {
		return ErrDuplicate
	}
	return err
}

func (r *Repository) GetFeedback(ctx context.Context, id string) (*models.InterviewFeedback, error) {
	var f models.InterviewFeedback
	if err := r.DB.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (r *Repository) ListFeedbackForSession(ctx context.Context, sessionID string) ([]models.InterviewFeedback, error) {
	feedback := []models.InterviewFeedback{}
	err := r.DB.WithContext(ctx).
		Where("live_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&feedback).Error
	return feedback, err
}

func (r *Repository) FeedbackExists(ctx context.Context, sessionID, reviewerID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.InterviewFeedback{}).
		Where("live_session_id = ? AND reviewer_id = ?", sessionID, reviewerID).
		Count(&count).Error
	return count > 0, err
}

// casUpdate writes every column of record only if its stored version still
// equals *version, then bumps *version.
func casUpdate(db *gorm.DB, record any, version *int64) error {
	expected := *version
	*version = expected + 1
	res := db.Model(record).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(record)
	if res.Error != nil {
		*version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		*version = expected
		return ErrStale
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
