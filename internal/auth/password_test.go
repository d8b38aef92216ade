package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("VerifyPassword with correct password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestHashPasswordBounds(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := HashPassword(strings.Repeat("x", maxPasswordLength+1)); err == nil {
		t.Fatal("expected error for oversized password")
	}
	if _, err := HashPassword(strings.Repeat("x", maxPasswordLength)); err != nil {
		t.Fatalf("password at the limit should hash: %v", err)
	}
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	if err := VerifyPassword("", "anything"); err == nil {
		t.Fatal("expected error for empty hash")
	}
}
