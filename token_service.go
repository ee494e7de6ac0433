package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Subject is the identity a session token is issued for.
type Subject struct {
	ID          string
	Email       string
	ExternalID  string
	SSOProvider string
}

// TokenService issues and validates signed session tokens
type TokenService interface {
	Issue(subject Subject, ttl time.Duration) (string, error)
	Validate(tokenString string) (*SessionClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// the default TTL in hours, used when Issue is called with a zero ttl.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// NewTokenServiceFromConfig builds a TokenService from the shared Config surface.
func NewTokenServiceFromConfig(cfg Config, logger Logger) (TokenService, error) {
	if cfg == nil || cfg.GetSigningKey() == "" {
		return nil, newConfigurationError("signing key must not be empty")
	}
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger,
	), nil
}

// Issue stamps issued-at and expiry, signs the claim set, and returns the
// opaque token string. Tokens are stateless: nothing is persisted.
func (ts *TokenServiceImpl) Issue(subject Subject, ttl time.Duration) (string, error) {
	if subject.ID == "" {
		return "", goerrors.New("subject id must not be empty", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		ttl = time.Duration(ts.tokenExpiration) * time.Hour
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject.ID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:       subject.Email,
		ExternalID:  subject.ExternalID,
		SSOProvider: subject.SSOProvider,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// The signature is checked before any content is trusted; expiry is only
// reported for tokens that carry a valid signature.
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalid
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || !claims.wellFormed() {
		ts.logger.Error("TokenService validate rejected claims with unexpected shape")
		return nil, ErrTokenMalformed
	}

	// Any one of the configured audiences is acceptable; the parser option
	// only checks a single value.
	if len(ts.audience) > 0 && !claims.hasAudience(ts.audience) {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// PrivilegeResolver re-derives authorization from the external identity
// provider at check time. Tokens prove identity, not current privilege:
// administrator status can be revoked after issuance, so it is never read
// from the token itself.
type PrivilegeResolver struct {
	provider IdentityProvider
	logger   Logger
}

// NewPrivilegeResolver creates a resolver over the given provider.
func NewPrivilegeResolver(provider IdentityProvider, logger Logger) *PrivilegeResolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &PrivilegeResolver{provider: provider, logger: logger}
}

// IsAdministrator asks the provider for the subject's live policy. An
// upstream failure degrades to non-administrator rather than propagating:
// privilege is a refinement of identity, not identity itself.
func (p *PrivilegeResolver) IsAdministrator(ctx context.Context, claims *SessionClaims) bool {
	if claims == nil {
		return false
	}

	policy, err := p.provider.GetUserPolicy(ctx, claims.IdentityID())
	if err != nil {
		p.logger.Warn("privilege re-derivation failed, treating subject as non-admin: %v", err)
		return false
	}
	if policy == nil || policy.IsDisabled {
		return false
	}

	return policy.IsAdministrator
}
