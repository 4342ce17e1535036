// Package identity maps bearer tokens to registered user ids.
// Sessions are issued elsewhere; this package only verifies them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means the request carried no bearer token
	ErrNoToken = errors.New("missing bearer token")
	// ErrInvalidToken means the token failed verification
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload. userId is the only claim the ledger needs.
type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// Resolver verifies HS256 tokens signed with a shared secret
type Resolver struct {
	secret []byte
	now    func() time.Time
}

// NewResolver creates a resolver for tokens signed with secret
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID valid for ttl
func (r *Resolver) Issue(userID int64, ttl time.Duration) (string, error) {
	now := r.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its user id
func (r *Resolver) Parse(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return r.secret, nil
	}, jwt.WithTimeFunc(r.now))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

// UserIDFromRequest reads the Authorization header. It returns ErrNoToken
// when no bearer token is present.
func (r *Resolver) UserIDFromRequest(req *http.Request) (int64, error) {
	authz := strings.TrimSpace(req.Header.Get("Authorization"))
	if authz == "" {
		return 0, ErrNoToken
	}
	if !strings.HasPrefix(authz, "Bearer ") {
		return 0, ErrInvalidToken
	}
	return r.Parse(strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")))
}

type contextKey string

const userIDKey = contextKey("userID")

// WithUserID stores the authenticated user id in ctx
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, if any
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}
