package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	users  UserDirectory
	idp    IdentityProvider
	issuer CredentialIssuer
	pub    EventPublisher

	log   zerolog.Logger
	audit func(ctx context.Context, action string, fields map[string]string)
	newID func() string
	now   func() time.Time
}

func NewService(
	users UserDirectory,
	idp IdentityProvider,
	issuer CredentialIssuer,
	pub EventPublisher,
	log zerolog.Logger,
) *Service {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Service{
		users:  users,
		idp:    idp,
		issuer: issuer,
		pub:    pub,
		log:    log,
		audit:  func(context.Context, string, map[string]string) {},
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

func (s *Service) WithAudit(fn func(ctx context.Context, action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithIDGenerator overrides user id generation. Tests only.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	if fn != nil {
		s.newID = fn
	}
	return s
}

type noopPublisher struct{}

func (noopPublisher) PublishUserRegistered(context.Context, UserRegisteredEvent) error { return nil }
func (noopPublisher) PublishUserLoggedIn(context.Context, UserLoggedInEvent) error     { return nil }
