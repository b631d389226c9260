package memory

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

// UserRepo is an in-process directory with the same subject uniqueness
// guarantee as the postgres one. Used in dev and tests.
type UserRepo struct {
	mu        sync.RWMutex
	byID      map[string]domain.User
	bySubject map[string]string // subject -> userID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:      make(map[string]domain.User),
		bySubject: make(map[string]string),
	}
}

func (r *UserRepo) FindBySubject(ctx context.Context, subject string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySubject[subject]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Subject == "" {
		return domain.User{}, domain.ErrMissingField("subject")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySubject[u.Subject]; exists {
		return domain.User{}, domain.ErrSubjectAlreadyExists()
	}

	now := time.Now().UTC()
	u.DisplayName, u.AvatarURI = "", ""
	u.CreatedAt, u.LastSeenAt = now, now

	r.byID[u.ID] = u
	r.bySubject[u.Subject] = u.ID
	return u, nil
}

func (r *UserRepo) TouchLastSeen(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.LastSeenAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	delete(r.byID, id)
	delete(r.bySubject, u.Subject)
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, displayName, avatarURI string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if avatarURI != "" {
		u.AvatarURI = avatarURI
	}
	r.byID[id] = u
	return u, nil
}

func (r *UserRepo) Ping(ctx context.Context) error { return nil }
