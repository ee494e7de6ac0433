package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Assertion is the identity extracted from a provider-issued token.
type Assertion struct {
	Subject string
	Email   string
	Issuer  string
}

type assertionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// AssertionValidator verifies provider-issued JWT assertions against the
// provider's published JWKS. Keys refresh in the background; call Close when
// the validator is no longer needed.
type AssertionValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience []string
}

// NewAssertionValidator fetches the JWKS at jwksURL and returns a validator
// bound to the given issuer and audience.
func NewAssertionValidator(ctx context.Context, jwksURL, issuer string, audience []string) (*AssertionValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sso: failed to load JWKS: %w", err)
	}

	return &AssertionValidator{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// Validate checks the assertion's signature against the JWKS, then issuer,
// audience and expiry, and returns the asserted identity.
func (v *AssertionValidator) Validate(tokenString string) (*Assertion, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}

	token, err := jwt.ParseWithClaims(tokenString, &assertionClaims{}, v.jwks.Keyfunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAssertionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}

	claims, ok := token.Claims.(*assertionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrAssertionInvalid
	}
	if len(v.audience) > 0 && !hasAnyAudience(claims.Audience, v.audience) {
		return nil, ErrAssertionInvalid
	}

	return &Assertion{
		Subject: claims.Subject,
		Email:   claims.Email,
		Issuer:  claims.Issuer,
	}, nil
}

// hasAnyAudience reports whether the token audience intersects the accepted
// set.
func hasAnyAudience(carried jwt.ClaimStrings, accepted []string) bool {
	for _, want := range accepted {
		for _, aud := range carried {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// Close stops the background JWKS refresh.
func (v *AssertionValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
