package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/queue"
	"github.com/lifelane/lifelane/internal/store"
	"github.com/lifelane/lifelane/internal/store/memory"
)

func expireTask(t *testing.T, payload queue.ExpirePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.SirenExpireTask, data)
}

func TestHandleExpireClearsMatchingGrant(t *testing.T) {
	s := memory.New(store.PolicyStrict)
	ctx := context.Background()
	rec, err := s.Create(ctx, store.NewRequest{PatientName: "p", ProblemDescription: "d"})
	require.NoError(t, err)
	granted, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)

	p := NewProcessor(s)
	err = p.handleExpire(ctx, expireTask(t, queue.ExpirePayload{RequestID: rec.ID, Code: *granted.Code}))
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)
	require.Nil(t, got.Code)
	require.Nil(t, got.GrantedAt)
}

func TestHandleExpireIgnoresSupersededCode(t *testing.T) {
	s := memory.New(store.PolicyStrict)
	ctx := context.Background()
	rec, err := s.Create(ctx, store.NewRequest{PatientName: "p", ProblemDescription: "d"})
	require.NoError(t, err)
	first, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)
	second, err := s.Transition(ctx, rec.ID, model.StatusGranted)
	require.NoError(t, err)

	p := NewProcessor(s)
	err = p.handleExpire(ctx, expireTask(t, queue.ExpirePayload{RequestID: rec.ID, Code: *first.Code}))
	require.NoError(t, err)

	// The fresh grant is untouched.
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusGranted, got.Status)
	require.Equal(t, *second.Code, *got.Code)
}

func TestHandleExpireBadPayload(t *testing.T) {
	p := NewProcessor(memory.New(store.PolicyStrict))
	err := p.handleExpire(context.Background(), asynq.NewTask(queue.SirenExpireTask, []byte("{")))
	require.Error(t, err)
}
