package dto

import (
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=64"`
	AvatarURI   string `json:"avatar_uri" validate:"omitempty,max=1024,url"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r.DisplayName == "" && r.AvatarURI == "" {
		return domain.ErrMissingField("display_name")
	}
	return validateStruct(r)
}

type UserView struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURI   string    `json:"avatar_uri"`
	HasUnionID  bool      `json:"has_unionid"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// ProfileResponse wraps the user for GET /me and POST /profile.
type ProfileResponse struct {
	User UserView `json:"user"`
}

// NewUserView never exposes the provider subject.
func NewUserView(u domain.User) UserView {
	return UserView{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURI:   u.AvatarURI,
		HasUnionID:  u.FederationID != "",
		CreatedAt:   u.CreatedAt,
		LastSeenAt:  u.LastSeenAt,
	}
}
