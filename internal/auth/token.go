package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// TokenClaims are the claims the admin API embeds in its access tokens.
type TokenClaims struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Expiry returns the expiry, or nil when the token carries none.
func (c *TokenClaims) Expiry() *time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return nil
	}
	t := c.RegisteredClaims.ExpiresAt.Time
	return &t
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The result is advisory: only the server can validate a token.
func InspectToken(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.NewValidationError("token is empty")
	}

	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, appErrors.NewValidationError("token is not a JWT").WithInternal(err)
	}
	return &claims, nil
}

// LooksLikeJWT reports whether token has the three dot-separated segments of a
// compact JWS.
func LooksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
