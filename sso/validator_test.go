package sso_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-credentials/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key-1"

// newJWKSServer serves a single-key JWKS for the given RSA public key.
func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": testKID,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)
	return server
}

func signAssertion(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAssertionValidator_Validate(t *testing.T) {
	ctx := context.Background()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, &key.PublicKey)

	validator, err := sso.NewAssertionValidator(ctx, server.URL, "https://idp.example.com", []string{"portal"})
	require.NoError(t, err)
	t.Cleanup(validator.Close)

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   "https://idp.example.com",
			"aud":   "portal",
			"sub":   "ext-42",
			"email": "pepe.rone@example.com",
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}
	}

	t.Run("accepts a signed assertion and extracts the identity", func(t *testing.T) {
		assertion, err := validator.Validate(signAssertion(t, key, baseClaims()))
		require.NoError(t, err)
		assert.Equal(t, "ext-42", assertion.Subject)
		assert.Equal(t, "pepe.rone@example.com", assertion.Email)
		assert.Equal(t, "https://idp.example.com", assertion.Issuer)
	})

	t.Run("rejects assertions signed by an unknown key", func(t *testing.T) {
		rogue, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		_, err = validator.Validate(signAssertion(t, rogue, baseClaims()))
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})

	t.Run("rejects expired assertions", func(t *testing.T) {
		claims := baseClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := validator.Validate(signAssertion(t, key, claims))
		assert.ErrorIs(t, err, sso.ErrAssertionExpired)
	})

	t.Run("rejects assertions without an expiry", func(t *testing.T) {
		claims := baseClaims()
		delete(claims, "exp")

		_, err := validator.Validate(signAssertion(t, key, claims))
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})

	t.Run("rejects a wrong issuer", func(t *testing.T) {
		claims := baseClaims()
		claims["iss"] = "https://evil.example.com"

		_, err := validator.Validate(signAssertion(t, key, claims))
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})

	t.Run("rejects a wrong audience", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = "other-app"

		_, err := validator.Validate(signAssertion(t, key, claims))
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})

	t.Run("accepts any configured audience", func(t *testing.T) {
		multi, err := sso.NewAssertionValidator(ctx, server.URL, "https://idp.example.com", []string{"portal", "admin"})
		require.NoError(t, err)
		t.Cleanup(multi.Close)

		claims := baseClaims()
		claims["aud"] = "admin"

		assertion, err := multi.Validate(signAssertion(t, key, claims))
		require.NoError(t, err)
		assert.Equal(t, "ext-42", assertion.Subject)
	})

	t.Run("rejects assertions without a subject", func(t *testing.T) {
		claims := baseClaims()
		delete(claims, "sub")

		_, err := validator.Validate(signAssertion(t, key, claims))
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})

	t.Run("rejects garbage input", func(t *testing.T) {
		_, err := validator.Validate("not-a-token")
		assert.ErrorIs(t, err, sso.ErrAssertionInvalid)
	})
}
