package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the closed claim set carried by a session token. The
// payload shape is fixed: tokens with a missing subject or expiry are
// rejected as malformed rather than trusted with arbitrary fields.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	ExternalID  string `json:"eid,omitempty"`
	SSOProvider string `json:"sso,omitempty"`
}

// UserID returns the subject identifier the token was issued for
func (c *SessionClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// IdentityID returns the identifier of the account on the external identity
// provider, falling back to the subject when no external id was recorded.
func (c *SessionClaims) IdentityID() string {
	if c.ExternalID != "" {
		return c.ExternalID
	}
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// hasAudience reports whether the token carries at least one of the accepted
// audiences.
func (c *SessionClaims) hasAudience(accepted jwt.ClaimStrings) bool {
	for _, want := range accepted {
		for _, aud := range c.RegisteredClaims.Audience {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// wellFormed reports whether the payload matches the expected closed shape.
func (c *SessionClaims) wellFormed() bool {
	return c.RegisteredClaims.Subject != "" &&
		c.RegisteredClaims.ExpiresAt != nil &&
		c.RegisteredClaims.IssuedAt != nil
}
