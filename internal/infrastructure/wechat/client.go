package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

const DefaultBaseURL = "https://api.weixin.qq.com"

// Client exchanges mini-program login codes at the jscode2session endpoint.
type Client struct {
	appID      string
	secret     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. A zero timeout falls back to 5s.
func NewClient(appID, secret, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		appID:   appID,
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsConfigured returns true if app credentials are set
func (c *Client) IsConfigured() bool {
	return c.appID != "" && c.secret != ""
}

// sessionResponse from jscode2session. session_key is decoded so it can be
// dropped on purpose; it never leaves this package.
type sessionResponse struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Exchange trades a one-time code for the user's identity. The code is
// consumed upstream whatever the outcome, so there is exactly one attempt.
func (c *Client) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	if code == "" {
		return domain.ExternalIdentity{}, domain.ErrMissingField("code")
	}

	q := url.Values{
		"appid":      {c.appID},
		"secret":     {c.secret},
		"js_code":    {code},
		"grant_type": {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sns/jscode2session?"+q.Encode(), nil)
	if err != nil {
		return domain.ExternalIdentity{}, domain.ErrProviderUnreachable(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the query string, which carries the app secret.
		return domain.ExternalIdentity{}, domain.ErrProviderUnreachable(redact(err, c.secret))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.ExternalIdentity{}, domain.ErrProviderUnreachable(fmt.Errorf("read jscode2session response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ExternalIdentity{}, domain.ErrProviderUnreachable(fmt.Errorf("jscode2session status %d", resp.StatusCode))
	}

	var out sessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.ExternalIdentity{}, domain.ErrProviderUnreachable(fmt.Errorf("parse jscode2session response: %w", err))
	}

	if out.ErrCode != 0 || out.OpenID == "" {
		return domain.ExternalIdentity{}, domain.ErrProviderRejected(map[string]any{
			"errcode": out.ErrCode,
			"errmsg":  out.ErrMsg,
		})
	}

	return domain.ExternalIdentity{
		Subject:      out.OpenID,
		FederationID: out.UnionID,
	}, nil
}

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(secret), "REDACTED"))
}
