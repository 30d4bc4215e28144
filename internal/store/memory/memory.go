// Package memory contains the in-memory request store used by tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/store"
)

// Store keeps requests in a map guarded by an RWMutex. Every mutation runs
// under the single write lock, which trivially satisfies the per-record
// atomicity the lifecycle contract requires. RWMutex lets the polling-heavy
// read paths run concurrently.
type Store struct {
	mu       sync.RWMutex
	policy   store.TransitionPolicy
	requests map[string]*model.EmergencyRequest
	order    []string
}

// New constructs an empty store with the given transition policy.
func New(policy store.TransitionPolicy) *Store {
	return &Store{
		policy:   policy,
		requests: make(map[string]*model.EmergencyRequest),
	}
}

// Create validates and appends a new pending request.
func (s *Store) Create(ctx context.Context, in store.NewRequest) (*model.EmergencyRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rec := &model.EmergencyRequest{
		ID:                 uuid.NewString(),
		PatientName:        in.PatientName,
		ProblemDescription: in.ProblemDescription,
		Details:            in.Details,
		OwnerID:            in.OwnerID,
		Status:             model.StatusPending,
		CreatedAt:          time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return clone(rec), nil
}

// Get returns a copy of the request so callers cannot mutate internal state.
func (s *Store) Get(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(rec), nil
}

// ListAll returns requests in insertion order, optionally filtered by owner.
func (s *Store) ListAll(ctx context.Context, f store.Filter) ([]*model.EmergencyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.EmergencyRequest, 0, len(s.order))
	for _, id := range s.order {
		rec := s.requests[id]
		if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, clone(rec))
	}
	return out, nil
}

// Transition applies an administrative decision under the write lock.
func (s *Store) Transition(ctx context.Context, id string, target model.Status) (*model.EmergencyRequest, error) {
	if err := store.ValidateTarget(s.policy, target); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := store.Apply(rec, target, time.Now()); err != nil {
		return nil, err
	}
	return clone(rec), nil
}

// Expire clears the grant only when the stored code still matches.
func (s *Store) Expire(ctx context.Context, id, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.requests[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if rec.Status != model.StatusGranted || rec.Code == nil || *rec.Code != code {
		return false, nil
	}
	rec.Status = model.StatusPending
	rec.Code = nil
	rec.GrantedAt = nil
	return true, nil
}

func clone(rec *model.EmergencyRequest) *model.EmergencyRequest {
	out := *rec
	if rec.Code != nil {
		code := *rec.Code
		out.Code = &code
	}
	if rec.GrantedAt != nil {
		ts := *rec.GrantedAt
		out.GrantedAt = &ts
	}
	return &out
}
