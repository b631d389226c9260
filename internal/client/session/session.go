// Package session keeps a device's login credential fresh: it asks the
// platform for a one-time code, trades it at the login endpoint and caches
// the result.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrLoginFailed    = errors.New("login_failed")
	ErrMalformedToken = errors.New("malformed_token")
	ErrNoCode         = errors.New("no_code")
)

// User-facing messages.
const (
	MsgLoginSucceeded = "登录成功"
	MsgLoginFailed    = "登录失败"
	MsgMalformedToken = "登录失败：Token 格式错误"
	MsgNoCode         = "未获取到 code"
)

// Platform is the mini-program runtime.
type Platform interface {
	// CheckSession fails when the platform session has expired.
	CheckSession(ctx context.Context) error
	// Login returns a fresh one-time authorization code.
	Login(ctx context.Context) (string, error)
}

// Store persists the token and user id. Save and Clear change both keys
// together.
type Store interface {
	Load(ctx context.Context) (token, userID string, err error)
	Save(ctx context.Context, token, userID string) error
	Clear(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Exchanger trades a code for a credential.
type Exchanger interface {
	Login(ctx context.Context, code string) (LoginResult, error)
}

// IsUsable is a shape check only. Expiry is enforced by the server on use.
func IsUsable(token string) bool {
	return token != "" && strings.Contains(token, ".") && len(strings.Split(token, ".")) == 3
}

type Guard struct {
	platform Platform
	store    Store
	login    Exchanger
	notify   Notifier
	log      zerolog.Logger
}

func NewGuard(p Platform, s Store, ex Exchanger, n Notifier, log zerolog.Logger) *Guard {
	if n == nil {
		n = nopNotifier{}
	}
	return &Guard{platform: p, store: s, login: ex, notify: n, log: log}
}

// EnsureSession returns early when the platform session is alive and the
// cached token is usable. Otherwise it runs one login round. There are no
// retries; on failure the user is notified and nothing is persisted.
func (g *Guard) EnsureSession(ctx context.Context) error {
	token, _, err := g.store.Load(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("session load failed")
		token = ""
	}

	if IsUsable(token) {
		err := g.platform.CheckSession(ctx)
		if err == nil {
			return nil
		}
		g.log.Info().Err(err).Msg("platform session expired; logging in again")
	}

	if err := g.store.Clear(ctx); err != nil {
		g.log.Warn().Err(err).Msg("session clear failed")
	}

	return g.relogin(ctx)
}

func (g *Guard) relogin(ctx context.Context) error {
	code, err := g.platform.Login(ctx)
	if err != nil {
		return g.failed(ctx, MsgLoginFailed, err)
	}
	if code == "" {
		return g.failed(ctx, MsgNoCode, ErrNoCode)
	}

	res, err := g.login.Login(ctx, code)
	if err != nil {
		return g.failed(ctx, MsgLoginFailed, err)
	}
	if !IsUsable(res.Token) {
		return g.failed(ctx, MsgMalformedToken, ErrMalformedToken)
	}

	if err := g.store.Save(ctx, res.Token, res.UserID); err != nil {
		return g.failed(ctx, MsgLoginFailed, err)
	}

	g.notify.Notify(ctx, MsgLoginSucceeded)
	return nil
}

func (g *Guard) failed(ctx context.Context, msg string, err error) error {
	g.log.Error().Err(err).Msg("login failed")
	g.notify.Notify(ctx, msg)
	return fmt.Errorf("%w: %w", ErrLoginFailed, err)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}
