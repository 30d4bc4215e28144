// Package store defines the request lifecycle store: the one component that
// owns emergency requests, assigns identity, and mediates status
// transitions. Persistence varies behind the Store interface (in-memory map,
// JSON file, Postgres); the lifecycle rules live here so every backend
// enforces the same state machine.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/siren"
)

// ErrNotFound is exported so callers can compare errors using errors.Is.
var ErrNotFound = errors.New("request not found")

// ValidationError reports rejected input: a missing required field or an
// unacceptable target status. It maps to a 400 at the HTTP boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// TransitionPolicy controls whether an administrator may move a decided
// request back to pending. The strict policy treats pending as an invalid
// target; the permissive policy accepts it and clears the siren code.
type TransitionPolicy string

const (
	PolicyStrict     TransitionPolicy = "strict"
	PolicyPermissive TransitionPolicy = "permissive"
)

// NewRequest carries the caller-supplied fields of a submission.
type NewRequest struct {
	PatientName        string
	ProblemDescription string
	Details            string
	OwnerID            string
}

// Validate checks the required fields. Whitespace-only values count as empty.
func (n NewRequest) Validate() error {
	if strings.TrimSpace(n.PatientName) == "" {
		return &ValidationError{Reason: "patientName is required"}
	}
	if strings.TrimSpace(n.ProblemDescription) == "" {
		return &ValidationError{Reason: "problemDescription is required"}
	}
	return nil
}

// Filter narrows ListAll. A zero Filter returns everything.
type Filter struct {
	OwnerID string
}

// Store is the request lifecycle store. Implementations must make each
// Transition a single atomic read-modify-write per record so concurrent
// administrative decisions on the same id serialize and the last committed
// one wins with consistent code/grantedAt/status fields.
type Store interface {
	// Create validates and appends a new pending request.
	Create(ctx context.Context, in NewRequest) (*model.EmergencyRequest, error)
	// Get returns the request with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*model.EmergencyRequest, error)
	// ListAll returns every request matching the filter in insertion order.
	ListAll(ctx context.Context, f Filter) ([]*model.EmergencyRequest, error)
	// Transition applies an administrative decision. Granting always mints
	// a fresh code, even when the request is already granted.
	Transition(ctx context.Context, id string, target model.Status) (*model.EmergencyRequest, error)
	// Expire clears the grant only if the stored code still equals code.
	// It backs server-side siren expiry and ignores the transition policy;
	// the bool reports whether anything changed.
	Expire(ctx context.Context, id, code string) (bool, error)
}

// ValidateTarget checks a transition target against the policy.
func ValidateTarget(policy TransitionPolicy, target model.Status) error {
	if !target.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("invalid status %q", target)}
	}
	if target == model.StatusPending && policy != PolicyPermissive {
		return &ValidationError{Reason: "invalid status \"pending\""}
	}
	return nil
}

// Apply mutates rec in place per the target status. On grant it mints a
// fresh siren code and stamps grantedAt; any other target clears both.
// Callers hold whatever lock or row-level serialization their backend uses.
func Apply(rec *model.EmergencyRequest, target model.Status, now time.Time) error {
	switch target {
	case model.StatusGranted:
		code, err := siren.NewCode()
		if err != nil {
			return err
		}
		ts := now.UTC()
		rec.Status = model.StatusGranted
		rec.Code = &code
		rec.GrantedAt = &ts
	default:
		rec.Status = target
		rec.Code = nil
		rec.GrantedAt = nil
	}
	return nil
}
