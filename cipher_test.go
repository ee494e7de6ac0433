package credentials_test

import (
	"encoding/base64"
	"testing"

	"github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretCipher(t *testing.T) {
	t.Run("creates cipher with explicit salt", func(t *testing.T) {
		cipher, err := credentials.NewSecretCipher("master-secret", "explicit-salt")
		require.NoError(t, err)
		assert.NotNil(t, cipher)
	})

	t.Run("creates cipher with fallback salt", func(t *testing.T) {
		cipher, err := credentials.NewSecretCipher("master-secret", "")
		require.NoError(t, err)
		assert.NotNil(t, cipher)
	})

	t.Run("rejects empty master secret", func(t *testing.T) {
		cipher, err := credentials.NewSecretCipher("", "salt")
		assert.Nil(t, cipher)
		assert.True(t, credentials.IsConfigurationError(err))
	})
}

func TestSecretCipher_RoundTrip(t *testing.T) {
	cipher, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	cases := []string{
		"",
		"a",
		"client-secret-value",
		"unicode: приглашение 招待",
		`{"json":"payload","nested":{"ok":true}}`,
	}

	for _, plaintext := range cases {
		blob, err := cipher.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, blob)

		decrypted, err := cipher.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestSecretCipher_FreshIVPerCall(t *testing.T) {
	cipher, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	first, err := cipher.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSecretCipher_BitFlipFailsClosed(t *testing.T) {
	cipher, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	blob, err := cipher.Encrypt("sensitive configuration value")
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(blob)
	require.NoError(t, err)

	// Flip one bit in every byte position: IV, tag, and ciphertext must all
	// be covered by the integrity check.
	for i := range raw {
		corrupted := make([]byte, len(raw))
		copy(corrupted, raw)
		corrupted[i] ^= 0x01

		plaintext, err := cipher.Decrypt(base64.URLEncoding.EncodeToString(corrupted))
		assert.Empty(t, plaintext, "byte %d", i)
		assert.True(t, credentials.IsIntegrityError(err), "byte %d: expected integrity error, got %v", i, err)
	}
}

func TestSecretCipher_GarbageInput(t *testing.T) {
	cipher, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	for _, blob := range []string{"", "not base64!!!", base64.URLEncoding.EncodeToString([]byte("short"))} {
		_, err := cipher.Decrypt(blob)
		assert.True(t, credentials.IsIntegrityError(err), "input %q", blob)
	}
}

func TestSecretCipher_WrongKeyFailsClosed(t *testing.T) {
	alice, err := credentials.NewSecretCipher("alice-secret", "salt")
	require.NoError(t, err)
	mallory, err := credentials.NewSecretCipher("mallory-secret", "salt")
	require.NoError(t, err)

	blob, err := alice.Encrypt("for alice only")
	require.NoError(t, err)

	_, err = mallory.Decrypt(blob)
	assert.True(t, credentials.IsIntegrityError(err))
}

func TestDeriveKey(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		salt := credentials.CipherSalt("secret", "salt")
		assert.Equal(t, credentials.DeriveKey("secret", salt), credentials.DeriveKey("secret", salt))
	})

	t.Run("fallback salt mode produces a different key than explicit salt", func(t *testing.T) {
		explicit := credentials.DeriveKey("secret", credentials.CipherSalt("secret", "explicit-salt"))
		fallback := credentials.DeriveKey("secret", credentials.CipherSalt("secret", ""))
		// The two modes must never be silently compatible.
		assert.NotEqual(t, explicit, fallback)
	})

	t.Run("fallback salt depends on the master secret", func(t *testing.T) {
		assert.NotEqual(t,
			credentials.CipherSalt("secret-a", ""),
			credentials.CipherSalt("secret-b", ""),
		)
	})
}

func TestSecretCipher_SurvivesReconstruction(t *testing.T) {
	// Same master secret and salt must decrypt blobs produced by an earlier
	// cipher instance, as across process restarts.
	first, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	blob, err := first.Encrypt("persisted value")
	require.NoError(t, err)

	second, err := credentials.NewSecretCipher("master-secret", "salt")
	require.NoError(t, err)

	decrypted, err := second.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "persisted value", decrypted)
}
