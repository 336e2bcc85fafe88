package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for opaque tokens.
var ErrNotJWT = errors.New("jwt: token is not a JWT")

// Inspection is the unverified view of a token.
type Inspection struct {
	Subject   string
	Kind      TokenKind
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carries an exp claim.
func (i Inspection) HasExpiry() bool { return !i.ExpiresAt.IsZero() }

// ExpiresWithin reports whether the token expires before now+d.
// Tokens without exp never do.
func (i Inspection) ExpiresWithin(now time.Time, d time.Duration) bool {
	return i.HasExpiry() && !now.Add(d).Before(i.ExpiresAt)
}

// Inspect decodes the claims of token without verifying its signature.
func Inspect(token string) (Inspection, error) {
	claims := &PortalClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Inspection{}, errors.Join(ErrNotJWT, err)
	}
	out := Inspection{Subject: claims.UserID, Kind: claims.Kind, Role: claims.Role}
	if out.Subject == "" {
		out.Subject = claims.Subject
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
