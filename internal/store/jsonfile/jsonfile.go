// Package jsonfile persists requests as a single JSON array file, the
// smallest durable backend. Every operation is a whole-file read-rewrite
// under one mutex; writes go through a temp file and rename so a crash never
// leaves a partially written array behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/store"
)

// Store is a JSON-file-backed request store.
type Store struct {
	mu     sync.Mutex
	path   string
	policy store.TransitionPolicy
}

// New ensures the data directory and file exist and returns the store.
func New(path string, policy store.TransitionPolicy) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(path, []byte("[]")); err != nil {
			return nil, fmt.Errorf("init data file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	return &Store{path: path, policy: policy}, nil
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
	requests, err := s.load()
	if err != nil {
		return nil, err
	}
	requests = append(requests, rec)
	if err := s.save(requests); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the request with the given id.
func (s *Store) Get(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range requests {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, store.ErrNotFound
}

// ListAll returns requests in file (insertion) order.
func (s *Store) ListAll(ctx context.Context, f store.Filter) ([]*model.EmergencyRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*model.EmergencyRequest, 0, len(requests))
	for _, rec := range requests {
		if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Transition applies an administrative decision as one read-rewrite cycle.
func (s *Store) Transition(ctx context.Context, id string, target model.Status) (*model.EmergencyRequest, error) {
	if err := store.ValidateTarget(s.policy, target); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, err := s.load()
	if err != nil {
		return nil, err
	}
	idx := indexOf(requests, id)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	if err := store.Apply(requests[idx], target, time.Now()); err != nil {
		return nil, err
	}
	if err := s.save(requests); err != nil {
		return nil, err
	}
	return requests[idx], nil
}

// Expire clears the grant only when the stored code still matches.
func (s *Store) Expire(ctx context.Context, id, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, err := s.load()
	if err != nil {
		return false, err
	}
	idx := indexOf(requests, id)
	if idx < 0 {
		return false, store.ErrNotFound
	}
	rec := requests[idx]
	if rec.Status != model.StatusGranted || rec.Code == nil || *rec.Code != code {
		return false, nil
	}
	rec.Status = model.StatusPending
	rec.Code = nil
	rec.GrantedAt = nil
	if err := s.save(requests); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) load() ([]*model.EmergencyRequest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	var requests []*model.EmergencyRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	return requests, nil
}

func (s *Store) save(requests []*model.EmergencyRequest) error {
	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("encode requests: %w", err)
	}
	if err := writeFile(s.path, data); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	return nil
}

func indexOf(requests []*model.EmergencyRequest, id string) int {
	for i, rec := range requests {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// writeFile writes to a sibling temp file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lifelane-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
