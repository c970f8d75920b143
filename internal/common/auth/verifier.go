// internal/common/auth/verifier.go
package auth

import (
	"strings"
	"time"

	"hackathon-portal/internal/common/config"
	apperrors "hackathon-portal/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller extracted from a bearer token. The subject
// is the identity provider's stable user id (e.g. "auth0|abc123").
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

// Claims represents the JWT claims the portal cares about.
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}
}

// VerifyHeader extracts and verifies the token from an Authorization header
// value. All failures map to UNAUTHENTICATED; role checks happen later.
func (v *Verifier) VerifyHeader(authHeader string) (*Identity, error) {
	if authHeader == "" {
		return nil, apperrors.NewUnauthenticatedError("authorization header required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, apperrors.NewUnauthenticatedError("invalid authorization header format")
	}

	return v.Verify(parts[1])
}

// Verify parses and validates a raw token string.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, apperrors.NewUnauthenticatedError("invalid or expired token")
	}

	if claims.Subject == "" {
		return nil, apperrors.NewUnauthenticatedError("subject claim missing from token")
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Roles:   claims.Roles,
	}, nil
}

// HasRole reports whether the token itself carried the given role claim.
// The role store remains authoritative; token roles are a fast path.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// GenerateToken signs a token for the given subject. Production tokens come
// from the identity provider; this exists for tests and local development.
func GenerateToken(subject, email string, roles []string, cfg config.AuthConfig, ttl time.Duration) (string, error) {
	claims := Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
