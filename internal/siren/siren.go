// Package siren mints and verifies the single-use activation codes issued
// when an emergency request is granted.
package siren

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// alphabet deliberately omits 0/O and 1/I so codes read unambiguously over a
// phone line. 32 symbols per character gives 5 bits; two 4-character groups
// carry 40 bits of entropy.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewCode returns a fresh siren code in the form SRN-XXXX-XXXX. Codes come
// from crypto/rand, so a previously issued code gives no help guessing the
// next one.
func NewCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("SRN-%s-%s", out[:4], out[4:]), nil
}

// Verify compares a presented code against the stored one in constant time,
// so out-of-band verification does not leak prefix matches through timing.
func Verify(stored, presented string) bool {
	if stored == "" || len(stored) != len(presented) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
