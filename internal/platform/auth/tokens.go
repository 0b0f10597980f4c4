package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// TokenBytes of entropy, rendered as 40 hex characters.
const TokenBytes = 20

func newToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func NewVerificationToken() (string, error) { return newToken() }

func NewResetToken() (string, error) { return newToken() }

// Issuer computes token expiries.
type Issuer struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

func NewIssuer(verificationTTL, resetTTL time.Duration) Issuer {
	return Issuer{VerificationTTL: verificationTTL, ResetTTL: resetTTL}
}

func (i Issuer) VerificationExpiry(now time.Time) time.Time { return now.Add(i.VerificationTTL) }

func (i Issuer) ResetExpiry(now time.Time) time.Time { return now.Add(i.ResetTTL) }
