package middleware

import (
	"net/http"
	"strings"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

type CredentialVerifier interface {
	Verify(token string) (domain.Credential, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// Auth verifies Authorization: Bearer <credential> and injects the user id
// into the request context. Credentials are stateless; there is no
// revocation lookup.
func Auth(verifier CredentialVerifier, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}

			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			raw := strings.TrimSpace(parts[1])
			if !domain.HasCredentialShape(raw) {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			cred, err := verifier.Verify(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if strings.TrimSpace(cred.SubjectRef) == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), cred.SubjectRef)))
		})
	}
}
