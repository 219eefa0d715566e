package repositories

import (
	"errors"
	"testing"

	"peerprep/interview/internal/apperr"
)

func TestAsAppError(t *testing.T) {
	cases := []struct {
		in   error
		want apperr.Kind
	}{
		{ErrNotFound, apperr.KindNotFound},
		{ErrStale, apperr.KindConflict},
		{ErrDuplicate, apperr.KindConflict},
		{apperr.InvalidState("already live"), apperr.KindInvalidState},
		{errors.New("disk full"), apperr.KindInternal},
	}
	for _, tc := range cases {
		if got := apperr.KindOf(AsAppError(tc.in, "session")); got != tc.want {
			t.Errorf("AsAppError(%v) kind = %s, want %s", tc.in, got, tc.want)
		}
	}
	if AsAppError(nil, "session") != nil {
		t.Fatalf("expected nil for nil error")
	}
}
