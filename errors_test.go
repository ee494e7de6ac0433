package credentials_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	t.Run("nil and plain errors match nothing", func(t *testing.T) {
		for _, err := range []error{nil, errors.New("plain")} {
			assert.False(t, credentials.IsIntegrityError(err))
			assert.False(t, credentials.IsExpiredError(err))
			assert.False(t, credentials.IsAlreadyUsedError(err))
			assert.False(t, credentials.IsExhaustedError(err))
			assert.False(t, credentials.IsConfigurationError(err))
			assert.False(t, credentials.IsUpstreamError(err))
		}
	})

	t.Run("sentinels carry their text codes", func(t *testing.T) {
		assert.True(t, credentials.IsExpiredError(credentials.ErrTokenExpired))
		assert.False(t, credentials.IsExpiredError(credentials.ErrTokenInvalid))
		assert.False(t, credentials.IsExpiredError(credentials.ErrTokenMalformed))
	})

	t.Run("predicates survive wrapping", func(t *testing.T) {
		wrapped := goerrors.Wrap(credentials.ErrTokenExpired, goerrors.CategoryAuth, "request rejected")
		assert.True(t, credentials.IsExpiredError(wrapped))
	})

	t.Run("sentinels satisfy errors.Is", func(t *testing.T) {
		assert.ErrorIs(t, credentials.ErrTokenInvalid, credentials.ErrTokenInvalid)
		assert.NotErrorIs(t, credentials.ErrTokenInvalid, credentials.ErrTokenExpired)
	})
}
