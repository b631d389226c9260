package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/baechuer/miniapp-auth/internal/application/auth"
	"github.com/baechuer/miniapp-auth/internal/domain"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/memory"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/security"
	"github.com/baechuer/miniapp-auth/internal/transport/http/middleware"
)

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// mustReadJSON decodes JSON from r into out.
func mustReadJSON(t *testing.T, r io.Reader, out any) {
	t.Helper()

	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode json failed; body=%s err=%v", string(raw), err)
	}
}

func withUserCtx(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID))
}

// stubProvider maps codes to identities; unknown codes are rejected the way
// the platform rejects them.
type stubProvider struct {
	identities map[string]domain.ExternalIdentity
	err        error
}

func (p *stubProvider) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	if p.err != nil {
		return domain.ExternalIdentity{}, p.err
	}
	id, ok := p.identities[code]
	if !ok {
		return domain.ExternalIdentity{}, domain.ErrProviderRejected(map[string]any{"errcode": 40029, "errmsg": "invalid code"})
	}
	return id, nil
}

type fixture struct {
	users    *memory.UserRepo
	provider *stubProvider
	issuer   *security.JWTIssuer
	svc      *auth.Service
	h        *AuthHandler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	f := &fixture{
		users: memory.NewUserRepo(),
		provider: &stubProvider{identities: map[string]domain.ExternalIdentity{
			"c1": {Subject: "oA", FederationID: "uA"},
			"c2": {Subject: "oA", FederationID: "uA"},
		}},
		issuer: security.NewJWTIssuer(secret),
	}
	f.svc = auth.NewService(f.users, f.provider, f.issuer, nil, zerolog.Nop())
	f.h = NewAuthHandler(f.svc, nil)
	return f
}
