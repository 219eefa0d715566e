package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"peerprep/interview/internal/models"
	"peerprep/interview/internal/testhelpers"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(testhelpers.SetupTestDB(t))
}

func seedSession(t *testing.T, repo *Repository, interviewer string) *models.ScheduledSession {
	t.Helper()
	s := &models.ScheduledSession{
		ID:              uuid.New().String(),
		InterviewerID:   interviewer,
		ScheduledTime:   time.Now().Add(time.Hour).UTC(),
		DurationMinutes: 45,
		InterviewType:   "algorithms",
		InterviewLevel:  "medium",
		Status:          models.SessionScheduled,
	}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return s
}

func TestRepository_GetSession(t *testing.T) {
	repo := newRepo(t)
	s := seedSession(t, repo, "u1")

	t.Run("success", func(t *testing.T) {
		got, err := repo.GetSession(context.Background(), s.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.InterviewerID != "u1" || got.Status != models.SessionScheduled {
			t.Fatalf("unexpected session %#v", got)
		}
		if got.IntervieweeID != nil {
			t.Fatalf("expected nil interviewee")
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := repo.GetSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepository_UpdateSessionCompareAndSwap(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	s := seedSession(t, repo, "u1")

	first, _ := repo.GetSession(ctx, s.ID)
	second, _ := repo.GetSession(ctx, s.ID)

	first.Status = models.SessionMatching
	if err := repo.UpdateSession(ctx, first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Version)
	}

	second.Status = models.SessionCancelled
	if err := repo.UpdateSession(ctx, second); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if second.Version != 0 {
		t.Fatalf("stale copy version should be untouched, got %d", second.Version)
	}

	got, _ := repo.GetSession(ctx, s.ID)
	if got.Status != models.SessionMatching || got.Version != 1 {
		t.Fatalf("unexpected stored session %#v", got)
	}
}

func TestRepository_UpdateSessionWritesNulls(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	s := seedSession(t, repo, "u1")
	q := "q-1"
	s.QuestionID = &q
	if err := repo.UpdateSession(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	s.QuestionID = nil
	if err := repo.UpdateSession(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetSession(ctx, s.ID)
	if got.QuestionID != nil {
		t.Fatalf("expected question cleared, got %v", *got.QuestionID)
	}
}

func TestRepository_ListOpenSessions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	open := seedSession(t, repo, "u1")
	taken := seedSession(t, repo, "u2")
	u3 := "u3"
	taken.IntervieweeID = &u3
	if err := repo.UpdateSession(ctx, taken); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.ListOpenSessions(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("expected only the open session, got %#v", got)
	}

	mine, err := repo.ListSessionsForUser(ctx, "u3")
	if err != nil || len(mine) != 1 || mine[0].ID != taken.ID {
		t.Fatalf("expected u3 to see its session, got %#v err=%v", mine, err)
	}
}

func TestRepository_MatchingRequests(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	s := seedSession(t, repo, "u1")

	now := time.Now().UTC()
	expires := now.Add(-time.Second)
	u2 := "u2"
	matched := &models.MatchingRequest{
		ID:               uuid.New().String(),
		SessionID:        s.ID,
		RequestingUserID: "u1",
		MatchedUserID:    &u2,
		Status:           models.MatchingMatched,
		MatchedAt:        &now,
		ExpiresAt:        &expires,
	}
	old := &models.MatchingRequest{
		ID:               uuid.New().String(),
		SessionID:        s.ID,
		RequestingUserID: "u1",
		Status:           models.MatchingExpired,
		CreatedAt:        now.Add(-time.Minute),
	}
	for _, m := range []*models.MatchingRequest{old, matched} {
		if err := repo.CreateMatchingRequest(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	active, err := repo.ActiveMatchingRequests(ctx, s.ID)
	if err != nil || len(active) != 1 || active[0].ID != matched.ID {
		t.Fatalf("expected one active request, got %#v err=%v", active, err)
	}

	latest, err := repo.LatestMatchingRequestFor(ctx, s.ID, "u2")
	if err != nil || latest.ID != matched.ID {
		t.Fatalf("expected matched request as latest for u2, got %#v err=%v", latest, err)
	}
	if _, err := repo.LatestMatchingRequestFor(ctx, s.ID, "stranger"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}

	overdue, err := repo.OverdueMatchingRequests(ctx, now, 10)
	if err != nil || len(overdue) != 1 || overdue[0].ID != matched.ID {
		t.Fatalf("expected overdue request, got %#v err=%v", overdue, err)
	}

	stale := *matched
	matched.Status = models.MatchingExpired
	if err := repo.UpdateMatchingRequest(ctx, matched); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale.UserConfirmed = true
	if err := repo.UpdateMatchingRequest(ctx, &stale); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestRepository_AtomicRollsBack(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	s := seedSession(t, repo, "u1")

	boom := errors.New("boom")
	err := repo.Atomic(ctx, func(tx Store) error {
		cur, err := tx.GetSession(ctx, s.ID)
		if err != nil {
			return err
		}
		cur.Status = models.SessionMatching
		if err := tx.UpdateSession(ctx, cur); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := repo.GetSession(ctx, s.ID)
	if got.Status != models.SessionScheduled || got.Version != 0 {
		t.Fatalf("expected rollback, got %#v", got)
	}
}

func TestRepository_Feedback(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	s := seedSession(t, repo, "u1")

	fb := &models.InterviewFeedback{
		ID:                   uuid.New().String(),
		LiveSessionID:        s.ID,
		ReviewerID:           "u1",
		RevieweeID:           "u2",
		ProblemSolvingRating: 4,
		OverallRating:        5,
	}
	if err := repo.CreateFeedback(ctx, fb); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := *fb
	dup.ID = uuid.New().String()
	if err := repo.CreateFeedback(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.GetFeedback(ctx, fb.ID)
	if err != nil || got.ReviewerID != "u1" || got.OverallRating != 5 {
		t.Fatalf("unexpected feedback %#v err=%v", got, err)
	}
	if _, err := repo.GetFeedback(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := repo.ListFeedbackForSession(ctx, s.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one feedback row, got %d err=%v", len(list), err)
	}
	exists, err := repo.FeedbackExists(ctx, s.ID, "u2")
	if err != nil || exists {
		t.Fatalf("u2 has not submitted feedback")
	}
}
