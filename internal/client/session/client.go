package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgctx "github.com/baechuer/miniapp-auth/internal/pkg/context"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrTimeout     = errors.New("login_timeout")
	ErrUnavailable = errors.New("login_unavailable")
)

// StatusError is any non-200 answer from the login endpoint.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("login error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LoginClient calls POST {baseURL}/login.
type LoginClient struct {
	url  string
	http *http.Client
}

func NewLoginClient(baseURL string, timeout time.Duration) *LoginClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LoginClient{
		url:  strings.TrimRight(baseURL, "/") + "/login",
		http: &http.Client{Timeout: timeout},
	}
}

func (c *LoginClient) Login(ctx context.Context, code string) (LoginResult, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return LoginResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if rid := pkgctx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-Id", rid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return LoginResult{}, mapTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return LoginResult{}, mapTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return LoginResult{}, decodeError(resp.StatusCode, raw)
	}

	var out LoginResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return LoginResult{}, &StatusError{
			StatusCode: resp.StatusCode,
			Code:       "invalid_response",
			Message:    "response is not a JSON object",
		}
	}
	return out, nil
}

func decodeError(status int, raw []byte) error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return &StatusError{StatusCode: status, Code: eb.Error, Message: eb.Message}
	}
	return &StatusError{
		StatusCode: status,
		Code:       "unexpected_status",
		Message:    fmt.Sprintf("unexpected status: %d", status),
	}
}

func mapTransportError(err error) error {
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
