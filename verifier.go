package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrSignatureMissing is returned when the signature or timestamp header is absent.
	ErrSignatureMissing = errors.New("signature or timestamp missing")
	// ErrTimestampSkew is returned when the request timestamp is outside the allowed window.
	ErrTimestampSkew = errors.New("request timestamp outside allowed window")
	// ErrSignatureInvalid is returned when the signature does not match any configured key.
	ErrSignatureInvalid = errors.New("signature does not match")
)

// RequestVerifier authenticates inbound scheduler requests before any
// probing work happens.
type RequestVerifier interface {
	Verify(signature string, timestamp string, body []byte) error
}

// HMACVerifier validates hex-encoded HMAC-SHA256 signatures computed over
// "<timestamp>.<body>". Multiple keys are accepted so keys can be rotated
// without a deploy window.
type HMACVerifier struct {
	keys []string
	skew time.Duration
	now  func() time.Time
}

type HMACVerifierOptions struct {
	Keys []string
	Skew time.Duration
	Now  func() time.Time
}

func NewHMACVerifier(options HMACVerifierOptions) *HMACVerifier {
	if options.Skew <= 0 {
		options.Skew = 5 * time.Minute
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &HMACVerifier{
		keys: options.Keys,
		skew: options.Skew,
		now:  options.Now,
	}
}

func (v *HMACVerifier) Verify(signature string, timestamp string, body []byte) error {
	if signature == "" || timestamp == "" {
		return ErrSignatureMissing
	}

	unixSeconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing request timestamp: %w", ErrTimestampSkew)
	}

	requestTime := time.Unix(unixSeconds, 0)
	now := v.now()
	if requestTime.Before(now.Add(-v.skew)) || requestTime.After(now.Add(v.skew)) {
		return ErrTimestampSkew
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}

	for _, key := range v.keys {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(timestamp))
		mac.Write([]byte("."))
		mac.Write(body)
		if hmac.Equal(provided, mac.Sum(nil)) {
			return nil
		}
	}

	return ErrSignatureInvalid
}
