package credentials

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the secrets and defaults this package consumes
type Config interface {
	GetMasterSecret() string
	// GetCipherSalt returns the explicit KDF salt. Empty means the cipher
	// falls back to a salt derived from the master secret.
	GetCipherSalt() string
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetResetTTLHours() int
}

// Identity holds the attributes of an identity on the external provider
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// UserPolicy is the live authorization state of an identity as reported by
// the external provider.
type UserPolicy struct {
	IsAdministrator bool
	IsDisabled      bool
}

// IdentityProvider is the boundary to the external identity system. The
// provider owns user records and password hashes; this package only consumes
// the operations below.
type IdentityProvider interface {
	GetUserPolicy(ctx context.Context, identityID string) (*UserPolicy, error)
	SetPassword(ctx context.Context, identityID, newPassword string) error
	Authenticate(ctx context.Context, username, password string) (Identity, error)
	CreateUser(ctx context.Context, username, email, password string) (Identity, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
