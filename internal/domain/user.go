package domain

import "time"

// User is the directory record for one end user. Subject is the provider
// openid and never changes after creation.
type User struct {
	ID           string
	Subject      string
	FederationID string // unionid; empty when the provider does not return one
	DisplayName  string
	AvatarURI    string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// ExternalIdentity is what the identity provider returns for a code.
// It only lives for the duration of one login request.
type ExternalIdentity struct {
	Subject      string
	FederationID string
}
