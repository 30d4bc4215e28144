package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/store"
)

func newStore(t *testing.T, policy store.TransitionPolicy) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "emergency_requests.json")
	s, err := New(path, policy)
	require.NoError(t, err)
	return s, path
}

func TestLifecycle(t *testing.T) {
	s, _ := newStore(t, store.PolicyStrict)
	ctx := context.Background()

	rec, err := s.Create(ctx, store.NewRequest{
		PatientName:        "John Smith",
		ProblemDescription: "Chest pain",
		Details:            "age 54",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, rec.Status)
	require.Nil(t, rec.Code)

	granted, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)
	require.NotNil(t, granted.Code)
	require.NotNil(t, granted.GrantedAt)

	dismissed, err := s.Transition(ctx, rec.ID, model.StatusDismissed)
	require.NoError(t, err)
	require.Equal(t, model.StatusDismissed, dismissed.Status)
	require.Nil(t, dismissed.Code)
	require.Nil(t, dismissed.GrantedAt)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := newStore(t, store.PolicyStrict)
	ctx := context.Background()

	rec, err := s.Create(ctx, store.NewRequest{
		PatientName:        "p",
		ProblemDescription: "d",
	})
	require.NoError(t, err)
	granted, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)

	reopened, err := New(path, store.PolicyStrict)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusGranted, got.Status)
	require.NotNil(t, got.Code)
	require.Equal(t, *granted.Code, *got.Code)
	require.WithinDuration(t, *granted.GrantedAt, *got.GrantedAt, time.Second)
}

func TestValidationDoesNotTouchFile(t *testing.T) {
	s, path := newStore(t, store.PolicyStrict)
	ctx := context.Background()

	_, err := s.Create(ctx, store.NewRequest{PatientName: "", ProblemDescription: "x"})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}

func TestNotFound(t *testing.T) {
	s, _ := newStore(t, store.PolicyStrict)
	ctx := context.Background()
	_, err := s.Get(ctx, "nonexistent-id")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Transition(ctx, "nonexistent-id", model.StatusGranted)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpireMatchingCodeOnly(t *testing.T) {
	s, _ := newStore(t, store.PolicyStrict)
	ctx := context.Background()
	rec, err := s.Create(ctx, store.NewRequest{PatientName: "p", ProblemDescription: "d"})
	require.NoError(t, err)
	granted, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)

	changed, err := s.Expire(ctx, rec.ID, "SRN-ZZZZ-ZZZZ")
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = s.Expire(ctx, rec.ID, *granted.Code)
	require.NoError(t, err)
	require.True(t, changed)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)
	require.Nil(t, got.Code)
}

// Concurrent grant/dismiss on one record must settle on exactly one of the
// two target states with consistent fields, even through the whole-file
// read-rewrite cycle.
func TestConcurrentTransitions(t *testing.T) {
	s, _ := newStore(t, store.PolicyStrict)
	ctx := context.Background()
	rec, err := s.Create(ctx, store.NewRequest{PatientName: "p", ProblemDescription: "d"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Transition(ctx, rec.ID, model.StatusGranted)
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Transition(ctx, rec.ID, model.StatusDismissed)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	switch got.Status {
	case model.StatusGranted:
		require.NotNil(t, got.Code)
		require.NotNil(t, got.GrantedAt)
	case model.StatusDismissed:
		require.Nil(t, got.Code)
		require.Nil(t, got.GrantedAt)
	default:
		t.Fatalf("unexpected final status %q", got.Status)
	}
}

func TestUsersRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	users, err := NewUsers(path)
	require.NoError(t, err)
	ctx := context.Background()

	u := &model.User{
		ID:           "u1",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, users.CreateUser(ctx, u))
	require.ErrorIs(t, users.CreateUser(ctx, u), auth.ErrEmailTaken)

	got, err := users.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.PasswordHash, got.PasswordHash, "hash must survive the file round trip")

	require.NoError(t, users.SetAdmin(ctx, "ada@example.com", true))
	got, err = users.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, got.Admin)

	_, err = users.UserByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, auth.ErrUserNotFound)
}
