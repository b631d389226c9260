package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

// JWTIssuer signs and verifies session credentials with a single HS256 secret.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *JWTIssuer) WithClock(now func() time.Time) *JWTIssuer {
	s.now = now
	return s
}

// sessionClaims serializes to exactly {sub, iat, exp, role}.
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *JWTIssuer) Issue(userID string) (domain.Credential, error) {
	if len(s.secret) == 0 {
		return domain.Credential{}, domain.ErrTokenSignFailed(errors.New("signing secret not configured"))
	}
	if userID == "" {
		return domain.Credential{}, domain.ErrTokenSignFailed(errors.New("empty subject"))
	}

	// jwt NumericDate has second precision; keep the struct in sync with the payload.
	iat := s.now().UTC().Truncate(time.Second)
	exp := iat.Add(domain.CredentialTTL)

	claims := sessionClaims{
		Role: domain.RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return domain.Credential{}, domain.ErrTokenSignFailed(err)
	}

	return domain.Credential{
		Token:      signed,
		SubjectRef: userID,
		IssuedAt:   iat,
		ExpiresAt:  exp,
		Role:       domain.RoleAuthenticated,
	}, nil
}

func (s *JWTIssuer) Verify(token string) (domain.Credential, error) {
	if len(s.secret) == 0 {
		return domain.Credential{}, domain.ErrTokenInvalid()
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Credential{}, domain.ErrTokenExpired()
		}
		return domain.Credential{}, domain.ErrTokenInvalid()
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return domain.Credential{}, domain.ErrTokenInvalid()
	}
	if claims.Subject == "" || claims.Role != domain.RoleAuthenticated {
		return domain.Credential{}, domain.ErrTokenInvalid()
	}

	var iat time.Time
	if claims.IssuedAt != nil {
		iat = claims.IssuedAt.Time
	}

	return domain.Credential{
		Token:      token,
		SubjectRef: claims.Subject,
		IssuedAt:   iat,
		ExpiresAt:  claims.ExpiresAt.Time,
		Role:       claims.Role,
	}, nil
}
