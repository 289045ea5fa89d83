package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatdesk/chat-api/internal/utils/platformerrors"
)

// Principal identifies the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	Guest     bool
	ExpiresAt time.Time
}

type principalContextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// SessionValidator verifies HS256 session tokens minted by the web frontend.
type SessionValidator struct {
	secret    []byte
	clockSkew time.Duration
}

func NewSessionValidator(secret []byte, clockSkew time.Duration) (*SessionValidator, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	return &SessionValidator{secret: secret, clockSkew: clockSkew}, nil
}

// Validate parses and verifies the session token and returns its principal.
func (v *SessionValidator) Validate(ctx context.Context, tokenString string) (*Principal, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.clockSkew),
	)
	if err != nil || !token.Valid {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "invalid session token", err, "0f4b8d2a-6e1c-4937-80f4-3b7d1e5a8c2f")
	}
	if claims.Subject == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUnauthorized, "session token missing subject", nil, "4b8f2d6e-0a5c-4173-94b8-7f1d3e9c5a0b")
	}

	principal := &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Guest:  claims.Guest,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// IssueToken mints a session token. Used by tests and local tooling; the web
// frontend normally mints these itself with the shared secret.
func (v *SessionValidator) IssueToken(userID, email string, guest bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		Email: email,
		Guest: guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
