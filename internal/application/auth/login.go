package auth

import (
	"context"
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

// Stage names the step a login reached. Used in logs and metrics.
type Stage string

const (
	StageStart    Stage = "start"
	StageExchange Stage = "exchange"
	StageResolve  Stage = "resolve"
	StageIssue    Stage = "issue"
	StageRespond  Stage = "respond"
)

type LoginResult struct {
	User       domain.User
	Credential domain.Credential
	IsNewUser  bool
}

// LoginError tags a failure with the stage it happened in.
type LoginError struct {
	Stage Stage
	Err   error
}

func (e *LoginError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *LoginError) Unwrap() error { return e.Err }

const compensateTimeout = 3 * time.Second

// Login exchanges a platform code for a session credential, creating the
// user on first sight. Nothing is written when the exchange fails, and a
// user created here is removed again when no credential can be issued.
func (s *Service) Login(ctx context.Context, code string) (LoginResult, error) {
	if code == "" {
		return LoginResult{}, s.fail(ctx, StageStart, domain.ErrMissingField("code"))
	}

	identity, err := s.idp.Exchange(ctx, code)
	if err != nil {
		return LoginResult{}, s.fail(ctx, StageExchange, err)
	}

	user, isNew, err := s.resolveUser(ctx, identity)
	if err != nil {
		return LoginResult{}, s.fail(ctx, StageResolve, err)
	}

	cred, err := s.issuer.Issue(user.ID)
	if err == nil && !domain.HasCredentialShape(cred.Token) {
		err = domain.ErrCredentialMalformed()
	}
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.ErrTokenSignFailed(err)
		}
		if isNew {
			s.compensateCreate(ctx, user.ID)
		}
		return LoginResult{}, s.fail(ctx, StageIssue, err)
	}

	s.publish(ctx, user.ID, isNew)

	action := "wechat_login"
	if isNew {
		action = "wechat_register"
	}
	s.audit(ctx, action, map[string]string{"user_id": user.ID})

	return LoginResult{User: user, Credential: cred, IsNewUser: isNew}, nil
}

func (s *Service) resolveUser(ctx context.Context, id domain.ExternalIdentity) (domain.User, bool, error) {
	u, err := s.users.FindBySubject(ctx, id.Subject)
	if err == nil {
		if terr := s.users.TouchLastSeen(ctx, u.ID); terr != nil {
			s.log.Warn().Err(terr).Str("user_id", u.ID).Msg("touch last_seen failed")
		}
		return u, false, nil
	}
	if !domain.Is(err, "user_not_found") {
		return domain.User{}, false, err
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, domain.User{
		ID:           s.newID(),
		Subject:      id.Subject,
		FederationID: id.FederationID,
		CreatedAt:    now,
		LastSeenAt:   now,
	})
	if err == nil {
		return created, true, nil
	}
	if !domain.Is(err, "subject_already_exists") {
		return domain.User{}, false, err
	}

	// lost the race to a concurrent login for the same subject
	u, err = s.users.FindBySubject(ctx, id.Subject)
	if err != nil {
		return domain.User{}, false, err
	}
	return u, false, nil
}

// compensateCreate runs even if the caller went away.
func (s *Service) compensateCreate(ctx context.Context, userID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	if err := s.users.Delete(cctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("compensating delete failed")
		return
	}
	s.log.Warn().Str("user_id", userID).Msg("removed user created by failed login")
}

func (s *Service) publish(ctx context.Context, userID string, isNew bool) {
	now := s.now().UTC()
	if isNew {
		if err := s.pub.PublishUserRegistered(ctx, UserRegisteredEvent{UserID: userID, OccurredAt: now}); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("publish user_registered failed")
		}
	}
	if err := s.pub.PublishUserLoggedIn(ctx, UserLoggedInEvent{UserID: userID, IsNewUser: isNew, OccurredAt: now}); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("publish user_logged_in failed")
	}
}

func (s *Service) fail(ctx context.Context, stage Stage, err error) error {
	ev := s.log.Warn()
	if k := domain.KindOf(err); k == domain.KindInternal || k == domain.KindInfrastructure || k == "" {
		ev = s.log.Error()
	}
	ev.Err(err).Str("stage", string(stage)).Msg("login failed")
	return &LoginError{Stage: stage, Err: err}
}
