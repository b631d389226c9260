package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/miniapp-auth/internal/infrastructure/redis"
)

var _ Store = (*redis.SessionStore)(nil)
var _ Store = (*MemoryStore)(nil)
var _ Exchanger = (*LoginClient)(nil)

type fakePlatform struct {
	checkErr error
	code     string
	loginErr error

	logins int
}

func (p *fakePlatform) CheckSession(context.Context) error { return p.checkErr }
func (p *fakePlatform) Login(context.Context) (string, error) {
	p.logins++
	return p.code, p.loginErr
}

type fakeExchanger struct {
	res   LoginResult
	err   error
	codes []string
}

func (e *fakeExchanger) Login(ctx context.Context, code string) (LoginResult, error) {
	e.codes = append(e.codes, code)
	return e.res, e.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(ctx context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

// failingStore records calls and can fail Save.
type failingStore struct {
	MemoryStore
	saveErr error
	clears  int
}

func (s *failingStore) Save(ctx context.Context, token, userID string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, token, userID)
}

func (s *failingStore) Clear(ctx context.Context) error {
	s.clears++
	return s.MemoryStore.Clear(ctx)
}

type harness struct {
	platform *fakePlatform
	store    *failingStore
	ex       *fakeExchanger
	notifier *recordingNotifier
	guard    *Guard
}

func newHarness() *harness {
	h := &harness{
		platform: &fakePlatform{code: "c1"},
		store:    &failingStore{},
		ex:       &fakeExchanger{res: LoginResult{Token: "h.p.s", UserID: "U1"}},
		notifier: &recordingNotifier{},
	}
	h.guard = NewGuard(h.platform, h.store, h.ex, h.notifier, zerolog.Nop())
	return h
}

func (h *harness) cached(t *testing.T) (string, string) {
	t.Helper()
	tok, uid, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return tok, uid
}

func TestIsUsable(t *testing.T) {
	cases := map[string]bool{
		"":        false,
		"abc":     false,
		"a.b":     false,
		"a.b.c":   true,
		"a.b.c.d": false,
		"..":      true,
	}
	for tok, want := range cases {
		assert.Equal(t, want, IsUsable(tok), "token=%q", tok)
	}
}

func TestEnsureSession_ValidCache_NoNetwork(t *testing.T) {
	h := newHarness()
	_ = h.store.Save(context.Background(), "x.y.z", "U0")

	require.NoError(t, h.guard.EnsureSession(context.Background()))

	assert.Equal(t, 0, h.platform.logins)
	assert.Empty(t, h.ex.codes)
	assert.Equal(t, 0, h.store.clears)
	assert.Empty(t, h.notifier.msgs)
}

func TestEnsureSession_EmptyCache_LogsIn(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.guard.EnsureSession(context.Background()))

	tok, uid := h.cached(t)
	assert.Equal(t, "h.p.s", tok)
	assert.Equal(t, "U1", uid)
	assert.Equal(t, []string{"c1"}, h.ex.codes)
	assert.Equal(t, []string{MsgLoginSucceeded}, h.notifier.msgs)
}

func TestEnsureSession_MalformedCache_ClearsBothKeysFirst(t *testing.T) {
	h := newHarness()
	_ = h.store.Save(context.Background(), "notajwt", "U0")
	h.platform.loginErr = errors.New("platform down")

	err := h.guard.EnsureSession(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)

	tok, uid := h.cached(t)
	assert.Empty(t, tok)
	assert.Empty(t, uid)
	assert.Equal(t, 1, h.store.clears)
}

func TestEnsureSession_PlatformSessionExpired_Relogins(t *testing.T) {
	h := newHarness()
	_ = h.store.Save(context.Background(), "x.y.z", "U0")
	h.platform.checkErr = errors.New("session expired")

	require.NoError(t, h.guard.EnsureSession(context.Background()))

	tok, uid := h.cached(t)
	assert.Equal(t, "h.p.s", tok)
	assert.Equal(t, "U1", uid)
}

func TestEnsureSession_NoCode(t *testing.T) {
	h := newHarness()
	h.platform.code = ""

	err := h.guard.EnsureSession(context.Background())

	require.ErrorIs(t, err, ErrNoCode)
	assert.Empty(t, h.ex.codes)
	assert.Equal(t, []string{MsgNoCode}, h.notifier.msgs)
}

func TestEnsureSession_ServerError_NotifiesAndPersistsNothing(t *testing.T) {
	h := newHarness()
	h.ex.err = &StatusError{StatusCode: 400, Code: "provider_rejected"}

	err := h.guard.EnsureSession(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.StatusCode)
	assert.ErrorIs(t, err, ErrLoginFailed)

	tok, uid := h.cached(t)
	assert.Empty(t, tok)
	assert.Empty(t, uid)
	assert.Equal(t, []string{MsgLoginFailed}, h.notifier.msgs)
	assert.Equal(t, 1, h.platform.logins, "no retry")
}

func TestEnsureSession_MalformedIssuedToken_NotPersisted(t *testing.T) {
	h := newHarness()
	h.ex.res = LoginResult{Token: "nodots", UserID: "U1"}

	err := h.guard.EnsureSession(context.Background())

	require.ErrorIs(t, err, ErrMalformedToken)
	tok, uid := h.cached(t)
	assert.Empty(t, tok)
	assert.Empty(t, uid)
	assert.Equal(t, []string{MsgMalformedToken}, h.notifier.msgs)
}

func TestEnsureSession_SaveFails(t *testing.T) {
	h := newHarness()
	h.store.saveErr = errors.New("disk full")

	err := h.guard.EnsureSession(context.Background())

	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, []string{MsgLoginFailed}, h.notifier.msgs)
}

func TestNewGuard_NilNotifier(t *testing.T) {
	h := newHarness()
	g := NewGuard(h.platform, h.store, h.ex, nil, zerolog.Nop())

	assert.NoError(t, g.EnsureSession(context.Background()))
}
