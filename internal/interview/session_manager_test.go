package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerprep/interview/internal/apperr"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/questions"
	"peerprep/interview/internal/repositories"
	"peerprep/interview/internal/testhelpers"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ string, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == eventType {
			c++
		}
	}
	return c
}

type recordingPublisher struct {
	mu    sync.Mutex
	ended []string
}

func (p *recordingPublisher) MatchConfirmed(context.Context, *models.ScheduledSession, *models.MatchingRequest) error {
	return nil
}

func (p *recordingPublisher) SessionEnded(_ context.Context, s *models.ScheduledSession) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, s.ID)
	return nil
}

type failingPicker struct{}

func (failingPicker) PickQuestion(context.Context, *models.ScheduledSession) (string, error) {
	return "", errors.New("question service down")
}

// staleStore loses every session write to a concurrent writer.
type staleStore struct {
	repositories.Store
}

func (staleStore) UpdateSession(context.Context, *models.ScheduledSession) error {
	return repositories.ErrStale
}

type fixture struct {
	store     *repositories.Repository
	manager   *SessionManager
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewRepository(testhelpers.SetupTestDB(t))
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	m := NewSessionManager(store, questions.StaticPicker{QuestionID: "q-random"}, publisher, nil)
	m.SetNotifier(notifier)
	return &fixture{store: store, manager: m, notifier: notifier, publisher: publisher}
}

func strPtr(s string) *string { return &s }

func (f *fixture) seed(t *testing.T, status models.SessionStatus, interviewer string, interviewee, question *string) *models.ScheduledSession {
	t.Helper()
	s := &models.ScheduledSession{
		ID:              uuid.New().String(),
		InterviewerID:   interviewer,
		IntervieweeID:   interviewee,
		QuestionID:      question,
		ScheduledTime:   time.Now().Add(time.Hour).UTC(),
		DurationMinutes: 60,
		InterviewType:   "algorithms",
		InterviewLevel:  "medium",
		Status:          status,
	}
	if status == models.SessionInProgress {
		started := time.Now().UTC()
		s.StartedAt = &started
	}
	require.NoError(t, f.store.CreateSession(context.Background(), s))
	return s
}

func (f *fixture) reload(t *testing.T, id string) *models.ScheduledSession {
	t.Helper()
	s, err := f.store.GetSession(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestScheduleSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s, err := f.manager.ScheduleSession(ctx, "u1", models.ScheduleReq{
		ScheduledTime:   time.Now().Add(2 * time.Hour),
		DurationMinutes: 45,
		InterviewType:   "system-design",
		InterviewLevel:  "senior",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.InterviewerID)
	assert.Nil(t, s.IntervieweeID)
	assert.Equal(t, models.SessionScheduled, s.Status)

	_, err = f.manager.ScheduleSession(ctx, "u1", models.ScheduleReq{DurationMinutes: 45, InterviewType: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.manager.ScheduleSession(ctx, "u1", models.ScheduleReq{ScheduledTime: time.Now(), InterviewType: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.manager.ScheduleSession(ctx, "u1", models.ScheduleReq{ScheduledTime: time.Now(), DurationMinutes: 30})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestInviteParticipant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionScheduled, "u1", nil, nil)

	_, err := f.manager.InviteParticipant(ctx, s.ID, "u2", "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.manager.InviteParticipant(ctx, s.ID, "u1", "u1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.manager.InviteParticipant(ctx, s.ID, "u1", " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	invited, err := f.manager.InviteParticipant(ctx, s.ID, "u1", "u2")
	require.NoError(t, err)
	require.NotNil(t, invited.IntervieweeID)
	assert.Equal(t, "u2", *invited.IntervieweeID)

	_, err = f.manager.InviteParticipant(ctx, s.ID, "u1", "u3")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGetSessionAndListings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.seed(t, models.SessionScheduled, "u1", nil, nil)
	private := f.seed(t, models.SessionScheduled, "u1", strPtr("u2"), nil)

	_, err := f.manager.GetSession(ctx, open.ID, "anyone")
	assert.NoError(t, err)
	_, err = f.manager.GetSession(ctx, private.ID, "anyone")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.manager.GetSession(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := f.manager.ListOpenSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	mine, err := f.manager.ListSessionsForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, private.ID, mine[0].ID)
}

func TestGetLiveSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	live := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), strPtr("q1"))
	scheduled := f.seed(t, models.SessionScheduled, "u1", strPtr("u2"), nil)

	view, err := f.manager.GetLiveSession(ctx, live.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u1", view.InterviewerID)
	assert.Equal(t, "u2", view.IntervieweeID)
	assert.Equal(t, "q1", *view.ActiveQuestionID)

	_, err = f.manager.GetLiveSession(ctx, live.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.manager.GetLiveSession(ctx, scheduled.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

// After a switch only the new interviewer may change the question.
func TestSwitchRolesThenChangeQuestion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), strPtr("q1"))

	_, err := f.manager.ChangeQuestion(ctx, s.ID, "u2", strPtr("q2"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	view, err := f.manager.SwitchRoles(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u2", view.InterviewerID)
	assert.Equal(t, "u1", view.IntervieweeID)
	assert.Equal(t, "q1", *view.ActiveQuestionID)

	_, err = f.manager.ChangeQuestion(ctx, s.ID, "u1", strPtr("q2"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	view, err = f.manager.ChangeQuestion(ctx, s.ID, "u2", strPtr("q2"))
	require.NoError(t, err)
	assert.Equal(t, "q2", *view.ActiveQuestionID)

	stored := f.reload(t, s.ID)
	assert.Equal(t, "u2", stored.InterviewerID)
	assert.Equal(t, "q2", *stored.QuestionID)
	assert.Equal(t, 1, f.notifier.count(models.EventRoleSwitched))
	assert.Equal(t, 1, f.notifier.count(models.EventQuestionChanged))
}

func TestSwitchRolesTwiceRestoresRoles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), strPtr("q1"))

	_, err := f.manager.SwitchRoles(ctx, s.ID, "u1")
	require.NoError(t, err)
	view, err := f.manager.SwitchRoles(ctx, s.ID, "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", view.InterviewerID)
	assert.Equal(t, "u2", view.IntervieweeID)
	assert.Equal(t, "q1", *view.ActiveQuestionID)
}

func TestSwitchRolesErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	live := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), nil)
	scheduled := f.seed(t, models.SessionScheduled, "u1", strPtr("u2"), nil)

	_, err := f.manager.SwitchRoles(ctx, live.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.manager.SwitchRoles(ctx, scheduled.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.manager.SwitchRoles(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	stale := NewSessionManager(staleStore{Store: f.store}, nil, nil, nil)
	_, err = stale.SwitchRoles(ctx, live.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestChangeQuestionUsesPicker(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), strPtr("q1"))

	view, err := f.manager.ChangeQuestion(ctx, s.ID, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "q-random", *view.ActiveQuestionID)

	failing := NewSessionManager(f.store, failingPicker{}, nil, nil)
	_, err = failing.ChangeQuestion(ctx, s.ID, "u1", strPtr(""))
	assert.ErrorIs(t, err, apperr.ErrInternal)
}

func TestEndInterview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), nil)

	_, err := f.manager.EndInterview(ctx, s.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	res, err := f.manager.EndInterview(ctx, s.ID, "u2")
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Equal(t, models.SessionCompleted, res.Session.Status)
	require.NotNil(t, res.Session.EndedAt)

	again, err := f.manager.EndInterview(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.False(t, again.Ended)
	assert.Equal(t, []string{s.ID}, f.publisher.ended)
	assert.Equal(t, 1, f.notifier.count(models.EventInterviewEnded))

	scheduled := f.seed(t, models.SessionScheduled, "u1", strPtr("u2"), nil)
	_, err = f.manager.EndInterview(ctx, scheduled.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

// Both participants end at the same moment: one write wins, both succeed.
func TestEndInterviewConcurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionInProgress, "u1", strPtr("u2"), nil)

	var wg sync.WaitGroup
	results := make([]*models.EndResult, 2)
	errs := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			results[i], errs[i] = f.manager.EndInterview(ctx, s.ID, user)
		}(i, user)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].Ended != results[1].Ended, "exactly one caller should perform the transition")
	assert.Equal(t, models.SessionCompleted, f.reload(t, s.ID).Status)
	assert.Len(t, f.publisher.ended, 1)
}

func TestCancelSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionMatching, "u1", strPtr("u2"), nil)
	req := &models.MatchingRequest{
		ID:               uuid.New().String(),
		SessionID:        s.ID,
		RequestingUserID: "u1",
		Status:           models.MatchingPending,
	}
	require.NoError(t, f.store.CreateMatchingRequest(ctx, req))

	_, err := f.manager.CancelSession(ctx, s.ID, "u3")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	cancelled, err := f.manager.CancelSession(ctx, s.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, cancelled.Status)

	stored, err := f.store.GetMatchingRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchingCancelled, stored.Status)

	again, err := f.manager.CancelSession(ctx, s.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, again.Status)

	for _, status := range []models.SessionStatus{models.SessionInProgress, models.SessionCompleted} {
		live := f.seed(t, status, "u1", strPtr("u2"), nil)
		_, err := f.manager.CancelSession(ctx, live.ID, "u1")
		assert.ErrorIs(t, err, apperr.ErrInvalidState, "status %s", status)
	}
}

func TestAuthorize(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.seed(t, models.SessionMatching, "u1", nil, nil)
	require.NoError(t, f.store.CreateMatchingRequest(ctx, &models.MatchingRequest{
		ID:               uuid.New().String(),
		SessionID:        s.ID,
		RequestingUserID: "candidate",
		Status:           models.MatchingPending,
	}))

	assert.NoError(t, f.manager.Authorize(ctx, s.ID, "u1"))
	assert.NoError(t, f.manager.Authorize(ctx, s.ID, "candidate"))
	assert.ErrorIs(t, f.manager.Authorize(ctx, s.ID, "stranger"), apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.manager.Authorize(ctx, "missing", "u1"), apperr.ErrNotFound)

	cancelled := f.seed(t, models.SessionCancelled, "u1", strPtr("u2"), nil)
	assert.ErrorIs(t, f.manager.Authorize(ctx, cancelled.ID, "u1"), apperr.ErrInvalidState)
}
