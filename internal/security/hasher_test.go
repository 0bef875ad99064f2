package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("Secur3P@ss")
	if err != nil {
		t.Fatalf("hash returned error: %v", err)
	}
	if digest == "Secur3P@ss" {
		t.Fatalf("digest must not equal the plaintext")
	}
	if !h.Verify("Secur3P@ss", digest) {
		t.Fatalf("expected matching password to verify")
	}
	if h.Verify("wrong", digest) {
		t.Fatalf("expected wrong password to be rejected")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("Secur3P@ss")
	if err != nil {
		t.Fatalf("hash returned error: %v", err)
	}
	b, err := h.Hash("Secur3P@ss")
	if err != nil {
		t.Fatalf("hash returned error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct digests for the same password")
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxPasswordLength+1))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if h.Verify("anything", "not-a-bcrypt-digest") {
		t.Fatalf("malformed digest must not verify")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if got := NewHasher(0).Cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewHasher(2).Cost; got != bcrypt.MinCost {
		t.Fatalf("expected min cost, got %d", got)
	}
	if got := NewHasher(99).Cost; got != bcrypt.MaxCost {
		t.Fatalf("expected max cost, got %d", got)
	}
}
