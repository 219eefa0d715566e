package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/repositories"
	"peerprep/interview/internal/testhelpers"
)

func setup(t *testing.T) (*Collector, *repositories.Repository) {
	t.Helper()
	store := repositories.NewRepository(testhelpers.SetupTestDB(t))
	return NewCollector(store, nil), store
}

func seedSession(t *testing.T, store *repositories.Repository, status models.SessionStatus) *models.ScheduledSession {
	t.Helper()
	interviewee := "u2"
	s := &models.ScheduledSession{
		ID:              uuid.New().String(),
		InterviewerID:   "u1",
		IntervieweeID:   &interviewee,
		ScheduledTime:   time.Now().Add(-time.Hour).UTC(),
		DurationMinutes: 60,
		InterviewType:   "algorithms",
		Status:          status,
	}
	require.NoError(t, store.CreateSession(context.Background(), s))
	return s
}

func validReq(sessionID string) models.SubmitFeedbackReq {
	return models.SubmitFeedbackReq{
		LiveSessionID:                sessionID,
		ProblemSolvingRating:         4,
		CodingSkillsRating:           3,
		CommunicationRating:          5,
		InterviewerPerformanceRating: 4,
		OverallRating:                4,
		DidWell:                      "clear reasoning",
		ThingsToImprove:              "test edge cases earlier",
	}
}

func TestSubmitFeedback(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	s := seedSession(t, store, models.SessionCompleted)

	fb, err := c.SubmitFeedback(ctx, "u1", validReq(s.ID))
	require.NoError(t, err)
	assert.Equal(t, "u1", fb.ReviewerID)
	assert.Equal(t, "u2", fb.RevieweeID)
	assert.NotEmpty(t, fb.ID)

	req := validReq(s.ID)
	req.RevieweeID = "u1"
	fb, err = c.SubmitFeedback(ctx, "u2", req)
	require.NoError(t, err)
	assert.Equal(t, "u1", fb.RevieweeID)

	list, err := c.GetFeedbackForSession(ctx, s.ID, "u2")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSubmitFeedbackTwiceIsRejected(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	s := seedSession(t, store, models.SessionCompleted)

	_, err := c.SubmitFeedback(ctx, "u1", validReq(s.ID))
	require.NoError(t, err)
	_, err = c.SubmitFeedback(ctx, "u1", validReq(s.ID))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	list, err := c.GetFeedbackForSession(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConcurrentSubmitStoresOnce(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	s := seedSession(t, store, models.SessionCompleted)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.SubmitFeedback(ctx, "u1", validReq(s.ID))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	}
	assert.Equal(t, 1, ok)
}

func TestSubmitFeedbackErrors(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	done := seedSession(t, store, models.SessionCompleted)
	live := seedSession(t, store, models.SessionInProgress)

	_, err := c.SubmitFeedback(ctx, "u1", validReq(""))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	for _, rating := range []int{0, 6} {
		req := validReq(done.ID)
		req.CommunicationRating = rating
		_, err = c.SubmitFeedback(ctx, "u1", req)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}

	req := validReq(done.ID)
	req.RevieweeID = "u9"
	_, err = c.SubmitFeedback(ctx, "u1", req)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.SubmitFeedback(ctx, "u1", validReq("missing"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.SubmitFeedback(ctx, "u3", validReq(done.ID))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = c.SubmitFeedback(ctx, "u1", validReq(live.ID))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGetFeedbackParticipantsOnly(t *testing.T) {
	c, store := setup(t)
	ctx := context.Background()
	s := seedSession(t, store, models.SessionCompleted)
	fb, err := c.SubmitFeedback(ctx, "u1", validReq(s.ID))
	require.NoError(t, err)

	got, err := c.GetFeedback(ctx, fb.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 4, got.OverallRating)

	_, err = c.GetFeedback(ctx, fb.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = c.GetFeedback(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = c.GetFeedbackForSession(ctx, s.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
