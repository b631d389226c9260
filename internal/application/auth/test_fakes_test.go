package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditLog) fn(_ context.Context, action string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *auditLog) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

/*
Fakes for ports
*/

type fakeDirectory struct {
	mu sync.Mutex

	byID      map[string]domain.User
	bySubject map[string]string

	// first staleReads FindBySubject calls miss, to force the create race
	staleReads int

	findErr   error
	createErr error
	touchErr  error
	deleteErr error

	creates int
	touched []string
	deleted []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byID:      map[string]domain.User{},
		bySubject: map[string]string{},
	}
}

func (f *fakeDirectory) seed(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	f.bySubject[u.Subject] = u.ID
}

func (f *fakeDirectory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeDirectory) FindBySubject(ctx context.Context, subject string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.User{}, f.findErr
	}
	if f.staleReads > 0 {
		f.staleReads--
		return domain.User{}, domain.ErrUserNotFound()
	}
	id, ok := f.bySubject[subject]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return f.byID[id], nil
}

func (f *fakeDirectory) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if _, ok := f.bySubject[u.Subject]; ok {
		return domain.User{}, domain.ErrSubjectAlreadyExists()
	}
	f.byID[u.ID] = u
	f.bySubject[u.Subject] = u.ID
	return u, nil
}

func (f *fakeDirectory) TouchLastSeen(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = append(f.touched, id)
	if f.touchErr != nil {
		return f.touchErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.LastSeenAt = time.Now().UTC()
	f.byID[id] = u
	return nil
}

func (f *fakeDirectory) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	delete(f.byID, id)
	delete(f.bySubject, u.Subject)
	return nil
}

func (f *fakeDirectory) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeDirectory) UpdateProfile(ctx context.Context, id, displayName, avatarURI string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	if avatarURI != "" {
		u.AvatarURI = avatarURI
	}
	f.byID[id] = u
	return u, nil
}

type fakeProvider struct {
	mu sync.Mutex

	// code -> identity
	identities map[string]domain.ExternalIdentity
	err        error
	calls      int
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return domain.ExternalIdentity{}, p.err
	}
	id, ok := p.identities[code]
	if !ok {
		return domain.ExternalIdentity{}, domain.ErrProviderRejected(map[string]any{"errcode": 40029, "errmsg": "invalid code"})
	}
	return id, nil
}

type fakeIssuer struct {
	err   error
	token string // overrides the produced token when set
}

func (i *fakeIssuer) Issue(userID string) (domain.Credential, error) {
	if i.err != nil {
		return domain.Credential{}, i.err
	}
	tok := i.token
	if tok == "" {
		tok = "hdr.sub-" + userID + ".sig"
	}
	now := time.Now().UTC()
	return domain.Credential{
		Token:      tok,
		SubjectRef: userID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(domain.CredentialTTL),
		Role:       domain.RoleAuthenticated,
	}, nil
}

func (i *fakeIssuer) Verify(token string) (domain.Credential, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || !strings.HasPrefix(parts[1], "sub-") {
		return domain.Credential{}, domain.ErrTokenInvalid()
	}
	return domain.Credential{Token: token, SubjectRef: strings.TrimPrefix(parts[1], "sub-"), Role: domain.RoleAuthenticated}, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	err        error
	registered []UserRegisteredEvent
	loggedIn   []UserLoggedInEvent
}

func (p *fakePublisher) PublishUserRegistered(ctx context.Context, evt UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.registered = append(p.registered, evt)
	return nil
}

func (p *fakePublisher) PublishUserLoggedIn(ctx context.Context, evt UserLoggedInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.loggedIn = append(p.loggedIn, evt)
	return nil
}

var errBoom = errors.New("boom")
