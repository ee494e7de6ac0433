package credentials

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to rich errors so callers can branch on outcomes
// without string matching.
const (
	TextCodeIntegrity      = "INTEGRITY_CHECK_FAILED"
	TextCodeTokenExpired   = "TOKEN_EXPIRED"
	TextCodeTokenInvalid   = "TOKEN_INVALID"
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	TextCodeAlreadyUsed    = "TOKEN_ALREADY_USED"
	TextCodeExhausted      = "INVITE_EXHAUSTED"
	TextCodeNotFound       = "RECORD_NOT_FOUND"
	TextCodeConfiguration  = "CONFIGURATION_INVALID"
	TextCodeUpstream       = "UPSTREAM_FAILED"
)

// ErrTokenExpired is returned when a session token carries a valid signature
// but is past its expiry.
var ErrTokenExpired = goerrors.New("session token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenInvalid is returned when a session token signature does not verify.
var ErrTokenInvalid = goerrors.New("session token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid)

// ErrTokenMalformed is returned when a session token cannot be parsed or its
// payload does not match the expected claim shape.
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

func newIntegrityError(msg string) error {
	return goerrors.New(msg, goerrors.CategoryAuth).
		WithTextCode(TextCodeIntegrity)
}

func newNotFoundError(msg string, meta map[string]any) error {
	return goerrors.New(msg, goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(meta)
}

func newExpiredError(msg string, meta map[string]any) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeTokenExpired).
		WithMetadata(meta)
}

func newAlreadyUsedError(msg string, meta map[string]any) error {
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithTextCode(TextCodeAlreadyUsed).
		WithMetadata(meta)
}

func newExhaustedError(msg string, meta map[string]any) error {
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithTextCode(TextCodeExhausted).
		WithMetadata(meta)
}

func newConfigurationError(msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeConfiguration)
}

func wrapUpstreamError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, msg).
		WithTextCode(TextCodeUpstream)
}

// hasTextCode walks the chain so wrapping never hides an outcome code.
func hasTextCode(err error, code string) bool {
	for err != nil {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			return false
		}
		if rich.TextCode == code {
			return true
		}
		err = errors.Unwrap(rich)
	}
	return false
}

// IsIntegrityError reports whether err is a failed authenticity check on an
// encrypted blob. Treat as tampering.
func IsIntegrityError(err error) bool {
	return hasTextCode(err, TextCodeIntegrity)
}

// IsExpiredError will check for expired tokens and invites
func IsExpiredError(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsAlreadyUsedError will check for consumed single-use tokens
func IsAlreadyUsedError(err error) bool {
	return hasTextCode(err, TextCodeAlreadyUsed)
}

// IsExhaustedError will check for invites past their max use count
func IsExhaustedError(err error) bool {
	return hasTextCode(err, TextCodeExhausted)
}

// IsNotFoundError will check for missing or inactive records
func IsNotFoundError(err error) bool {
	return hasTextCode(err, TextCodeNotFound) || goerrors.IsNotFound(err)
}

// IsConfigurationError will check for invariant violations on writes
func IsConfigurationError(err error) bool {
	return hasTextCode(err, TextCodeConfiguration)
}

// IsUpstreamError will check for failed external identity/SSO calls
func IsUpstreamError(err error) bool {
	return hasTextCode(err, TextCodeUpstream)
}
