package siren

import (
	"regexp"
	"testing"
)

func TestNewCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^SRN-[A-Z2-9]{4}-[A-Z2-9]{4}$`)
	for i := 0; i < 100; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q does not match expected format", code)
		}
		// Codes also satisfy the broader contract clients rely on.
		if ok, _ := regexp.MatchString(`^[A-Z0-9-]{6,14}$`, code); !ok {
			t.Fatalf("code %q outside the documented character set", code)
		}
	}
}

func TestNewCodeUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q after %d mints", code, i)
		}
		seen[code] = true
	}
}

func TestVerify(t *testing.T) {
	code, err := NewCode()
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if !Verify(code, code) {
		t.Fatalf("expected matching code to verify")
	}
	if Verify(code, "SRN-AAAA-AAAA") && code != "SRN-AAAA-AAAA" {
		t.Fatalf("expected mismatched code to fail")
	}
	if Verify("", "") {
		t.Fatalf("expected empty stored code to fail")
	}
	if Verify(code, code+"X") {
		t.Fatalf("expected length mismatch to fail")
	}
}
