// Package sso talks to an external single-sign-on provider: it resolves
// OIDC discovery documents and validates provider-issued assertions against
// the provider's JWKS. It holds no state of its own; persisted SSO
// configuration lives in the parent package's policy store.
package sso
