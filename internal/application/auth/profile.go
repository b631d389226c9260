package auth

import (
	"context"
	"strings"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

func (s *Service) Profile(ctx context.Context, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrTokenInvalid()
	}
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile sets display name and avatar. Subject is never touched.
func (s *Service) UpdateProfile(ctx context.Context, userID, displayName, avatarURI string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrTokenInvalid()
	}
	displayName = strings.TrimSpace(displayName)
	avatarURI = strings.TrimSpace(avatarURI)
	if displayName == "" && avatarURI == "" {
		return domain.User{}, domain.ErrMissingField("display_name")
	}

	u, err := s.users.UpdateProfile(ctx, userID, displayName, avatarURI)
	if err != nil {
		return domain.User{}, err
	}
	s.audit(ctx, "profile_update", map[string]string{"user_id": userID})
	return u, nil
}
