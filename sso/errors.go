package sso

import "errors"

// ErrDiscoveryUnavailable is returned when the discovery document cannot be
// fetched after the configured retries.
var ErrDiscoveryUnavailable = errors.New("sso: discovery document unavailable")

// ErrDiscoveryInvalid is returned when the provider responds with a document
// missing required endpoints.
var ErrDiscoveryInvalid = errors.New("sso: discovery document is invalid")

// ErrAssertionInvalid is returned when an assertion fails signature or
// claim validation.
var ErrAssertionInvalid = errors.New("sso: assertion is invalid")

// ErrAssertionExpired is returned when an otherwise valid assertion is past
// its expiry.
var ErrAssertionExpired = errors.New("sso: assertion has expired")
