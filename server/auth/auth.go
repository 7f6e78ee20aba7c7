// Package auth issues and verifies the access tokens that identify an owner.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	ierrors "github.com/hrygo/strawbean/internal/errors"
)

const (
	// Issuer is the iss claim of every access token.
	Issuer = "strawbean"
	// DefaultTokenTTL is how long an access token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour

	bearerPrefix = "Bearer "
	// TokenQueryParam carries the token where headers cannot be set, such as
	// feed readers and browser WebSocket clients.
	TokenQueryParam = "token"
)

type contextKey int

const ownerIDContextKey contextKey = iota

// Claims is the payload of an access token.
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// Authenticator signs and validates HS256 access tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator creates an authenticator with the given signing secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
}

// SetTTL changes the lifetime of newly issued tokens.
func (a *Authenticator) SetTTL(ttl time.Duration) {
	a.ttl = ttl
}

// SetClock replaces the clock used for issuing and validating tokens.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

// GenerateToken issues a token for ownerID.
func (a *Authenticator) GenerateToken(ownerID string) (string, error) {
	if ownerID == "" {
		return "", ierrors.InvalidArgument("owner is required")
	}
	if len(a.secret) == 0 {
		return "", ierrors.InvalidArgument("no signing secret configured")
	}
	now := a.now()
	claims := &Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrCodeUnauthorized, "invalid access token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OwnerID == "" {
		return nil, ierrors.Unauthorized("invalid access token")
	}
	return claims, nil
}

// Authenticate validates the token in an Authorization header value.
func (a *Authenticator) Authenticate(authHeader string) (*Claims, error) {
	if authHeader == "" {
		return nil, ierrors.Unauthorized("authorization header required")
	}
	tokenString, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || tokenString == "" {
		return nil, ierrors.Unauthorized("invalid authorization format")
	}
	return a.ValidateToken(tokenString)
}

// Middleware rejects requests without a valid token and stores the owner in
// the request context. The token is read from the Authorization header, or
// from the token query parameter when allowQuery is set.
func (a *Authenticator) Middleware(allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var (
				claims *Claims
				err    error
			)
			if token := c.QueryParam(TokenQueryParam); allowQuery && token != "" {
				claims, err = a.ValidateToken(token)
			} else {
				claims, err = a.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			}
			if err != nil {
				return err
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithOwnerID(req.Context(), claims.OwnerID)))
			return next(c)
		}
	}
}

// WithOwnerID stores the authenticated owner in ctx.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDContextKey, ownerID)
}

// OwnerID returns the authenticated owner stored in ctx, or "".
func OwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerIDContextKey).(string)
	return ownerID
}
