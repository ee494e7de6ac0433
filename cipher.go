package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	cipherKeyLen     = 32
	cipherIterations = 100_000
	cipherTagSize    = 16

	// Domain separation prefix for the fallback salt. Changing it changes
	// every derived key, so treat it as part of the on-disk format.
	cipherSaltDomain = "go-credentials.cipher.salt.v1:"
)

// SecretCipher encrypts and decrypts secret strings with AES-256-GCM. The
// key is derived from the master secret once, in the constructor; the
// derivation is deliberately slow, so never build a cipher per operation.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives the encryption key from masterSecret and salt and
// returns a ready cipher. An empty salt selects the fallback mode where the
// salt is itself derived from the master secret. That mode is safe but keys
// are not portable to a configuration that later sets an explicit salt.
func NewSecretCipher(masterSecret, salt string) (*SecretCipher, error) {
	if masterSecret == "" {
		return nil, newConfigurationError("master secret must not be empty")
	}

	key := DeriveKey(masterSecret, CipherSalt(masterSecret, salt))

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create GCM")
	}

	return &SecretCipher{aead: aead}, nil
}

// NewSecretCipherFromConfig builds a cipher from the shared Config surface.
func NewSecretCipherFromConfig(cfg Config) (*SecretCipher, error) {
	if cfg == nil {
		return nil, newConfigurationError("config must not be nil")
	}
	return NewSecretCipher(cfg.GetMasterSecret(), cfg.GetCipherSalt())
}

// DeriveKey stretches masterSecret into a fixed-length AES key. Same inputs
// always produce the same key, which is what lets ciphertext survive process
// restarts.
func DeriveKey(masterSecret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(masterSecret), salt, cipherIterations, cipherKeyLen, sha256.New)
}

// CipherSalt resolves the KDF salt: the explicit value when configured,
// otherwise a hash of a domain separation string and the master secret.
func CipherSalt(masterSecret, explicit string) []byte {
	if explicit != "" {
		return []byte(explicit)
	}
	sum := sha256.Sum256([]byte(cipherSaltDomain + masterSecret))
	return sum[:]
}

// Encrypt seals plaintext under a fresh random IV and packs iv, auth tag,
// and ciphertext into a single base64 string.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate IV")
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	// GCM appends the tag to the ciphertext; the stored layout is
	// iv | tag | ciphertext.
	split := len(sealed) - cipherTagSize
	ciphertext, tag := sealed[:split], sealed[split:]

	blob := make([]byte, 0, len(iv)+len(tag)+len(ciphertext))
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.URLEncoding.EncodeToString(blob), nil
}

// Decrypt unpacks a blob produced by Encrypt and opens it. Any failure,
// including a truncated blob or a tag mismatch, is reported as an integrity
// error; no partial plaintext is ever returned.
func (c *SecretCipher) Decrypt(blob string) (string, error) {
	data, err := base64.URLEncoding.DecodeString(blob)
	if err != nil {
		return "", newIntegrityError("encrypted blob is not valid base64")
	}

	ivSize := c.aead.NonceSize()
	if len(data) < ivSize+cipherTagSize {
		return "", newIntegrityError("encrypted blob is truncated")
	}

	iv := data[:ivSize]
	tag := data[ivSize : ivSize+cipherTagSize]
	ciphertext := data[ivSize+cipherTagSize:]

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", newIntegrityError("encrypted blob failed authentication")
	}

	return string(plaintext), nil
}
