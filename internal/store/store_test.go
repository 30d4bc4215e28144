package store

import (
	"errors"
	"testing"
	"time"

	"github.com/lifelane/lifelane/internal/model"
)

func TestValidateTarget(t *testing.T) {
	var verr *ValidationError
	if err := ValidateTarget(PolicyStrict, model.StatusGranted); err != nil {
		t.Fatalf("granted should be valid: %v", err)
	}
	if err := ValidateTarget(PolicyStrict, model.StatusDismissed); err != nil {
		t.Fatalf("dismissed should be valid: %v", err)
	}
	if err := ValidateTarget(PolicyStrict, model.StatusPending); !errors.As(err, &verr) {
		t.Fatalf("strict policy should reject pending, got %v", err)
	}
	if err := ValidateTarget(PolicyPermissive, model.StatusPending); err != nil {
		t.Fatalf("permissive policy should accept pending: %v", err)
	}
	if err := ValidateTarget(PolicyPermissive, model.Status("approved")); !errors.As(err, &verr) {
		t.Fatalf("unknown status should be rejected, got %v", err)
	}
}

func TestNewRequestValidate(t *testing.T) {
	var verr *ValidationError
	ok := NewRequest{PatientName: "p", ProblemDescription: "d"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	bad := NewRequest{PatientName: " ", ProblemDescription: "d"}
	if err := bad.Validate(); !errors.As(err, &verr) {
		t.Fatalf("whitespace name should be rejected, got %v", err)
	}
}

func TestApplyKeepsInvariant(t *testing.T) {
	rec := &model.EmergencyRequest{ID: "r1", Status: model.StatusPending}
	if err := Apply(rec, model.StatusGranted, time.Now()); err != nil {
		t.Fatalf("apply granted: %v", err)
	}
	if rec.Code == nil || rec.GrantedAt == nil {
		t.Fatalf("grant must set both code and grantedAt")
	}
	first := *rec.Code
	if err := Apply(rec, model.StatusGranted, time.Now()); err != nil {
		t.Fatalf("re-apply granted: %v", err)
	}
	if *rec.Code == first {
		t.Fatalf("re-grant must mint a fresh code")
	}
	if err := Apply(rec, model.StatusDismissed, time.Now()); err != nil {
		t.Fatalf("apply dismissed: %v", err)
	}
	if rec.Code != nil || rec.GrantedAt != nil {
		t.Fatalf("dismissal must clear code and grantedAt")
	}
}
