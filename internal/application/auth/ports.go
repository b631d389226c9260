package auth

import (
	"context"
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

/*
UserDirectory
-------------
Persistence port for users, keyed by provider subject.
Uniqueness of Subject is enforced by the store, not by callers.
*/
type UserDirectory interface {
	// FindBySubject returns user_not_found when absent.
	FindBySubject(ctx context.Context, subject string) (domain.User, error)
	// Create returns subject_already_exists when a concurrent create won.
	Create(ctx context.Context, u domain.User) (domain.User, error)
	TouchLastSeen(ctx context.Context, id string) error
	// Delete is only used to compensate a create whose login failed.
	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (domain.User, error)
	UpdateProfile(ctx context.Context, id, displayName, avatarURI string) (domain.User, error)
}

/*
IdentityProvider
----------------
Exchanges a one-time platform code for an identity. One attempt only.
*/
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error)
}

/*
CredentialIssuer
----------------
Signs session credentials; Verify is used by the auth middleware.
*/
type CredentialIssuer interface {
	Issue(userID string) (domain.Credential, error)
	Verify(token string) (domain.Credential, error)
}

/*
EventPublisher
--------------
Login side effects for downstream consumers. Failures never fail a login.
*/
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, evt UserRegisteredEvent) error
	PublishUserLoggedIn(ctx context.Context, evt UserLoggedInEvent) error
}

type UserRegisteredEvent struct {
	UserID     string
	OccurredAt time.Time
}

type UserLoggedInEvent struct {
	UserID     string
	IsNewUser  bool
	OccurredAt time.Time
}
