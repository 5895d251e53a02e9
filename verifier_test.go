package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func signRequest(key string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHMACVerifier_Verify(t *testing.T) {
	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	verifier := NewHMACVerifier(HMACVerifierOptions{
		Keys: []string{"primary-key", "rotation-key"},
		Skew: 5 * time.Minute,
		Now:  func() time.Time { return now },
	})

	body := []byte(`{"monitor_id":"mon-1"}`)
	timestamp := fmt.Sprintf("%d", now.Unix())

	t.Run("accepts valid signature", func(t *testing.T) {
		if err := verifier.Verify(signRequest("primary-key", timestamp, body), timestamp, body); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("accepts rotated key", func(t *testing.T) {
		if err := verifier.Verify(signRequest("rotation-key", timestamp, body), timestamp, body); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		if err := verifier.Verify("", timestamp, body); !errors.Is(err, ErrSignatureMissing) {
			t.Errorf("expected ErrSignatureMissing, got %v", err)
		}
	})

	t.Run("rejects missing timestamp", func(t *testing.T) {
		if err := verifier.Verify(signRequest("primary-key", timestamp, body), "", body); !errors.Is(err, ErrSignatureMissing) {
			t.Errorf("expected ErrSignatureMissing, got %v", err)
		}
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		if err := verifier.Verify(signRequest("attacker-key", timestamp, body), timestamp, body); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("rejects tampered body", func(t *testing.T) {
		tampered := []byte(`{"monitor_id":"mon-2"}`)
		if err := verifier.Verify(signRequest("primary-key", timestamp, body), timestamp, tampered); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("rejects stale timestamp", func(t *testing.T) {
		stale := fmt.Sprintf("%d", now.Add(-10*time.Minute).Unix())
		if err := verifier.Verify(signRequest("primary-key", stale, body), stale, body); !errors.Is(err, ErrTimestampSkew) {
			t.Errorf("expected ErrTimestampSkew, got %v", err)
		}
	})

	t.Run("rejects future timestamp", func(t *testing.T) {
		future := fmt.Sprintf("%d", now.Add(10*time.Minute).Unix())
		if err := verifier.Verify(signRequest("primary-key", future, body), future, body); !errors.Is(err, ErrTimestampSkew) {
			t.Errorf("expected ErrTimestampSkew, got %v", err)
		}
	})

	t.Run("rejects non-numeric timestamp", func(t *testing.T) {
		if err := verifier.Verify(signRequest("primary-key", "yesterday", body), "yesterday", body); !errors.Is(err, ErrTimestampSkew) {
			t.Errorf("expected ErrTimestampSkew, got %v", err)
		}
	})

	t.Run("rejects non-hex signature", func(t *testing.T) {
		if err := verifier.Verify("zzzz", timestamp, body); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("expected ErrSignatureInvalid, got %v", err)
		}
	})

	t.Run("no keys rejects everything", func(t *testing.T) {
		bare := NewHMACVerifier(HMACVerifierOptions{Now: func() time.Time { return now }})
		if err := bare.Verify(signRequest("any", timestamp, body), timestamp, body); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("expected ErrSignatureInvalid, got %v", err)
		}
	})
}
