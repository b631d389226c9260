package domain

import (
	"strings"
	"time"
)

const (
	// RoleAuthenticated is the only role this service issues.
	RoleAuthenticated = "authenticated"

	// CredentialTTL is fixed; clients rely on it instead of decoding exp.
	CredentialTTL = 7 * 24 * time.Hour
)

// Credential is a signed, time-bounded bearer token bound to a user id.
// It is never stored server side.
type Credential struct {
	Token      string
	SubjectRef string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Role       string
}

// HasCredentialShape reports whether token is header.payload.signature with
// no empty segment.
func HasCredentialShape(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
