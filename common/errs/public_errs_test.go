package errs

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublicError(t *testing.T) {
	err := NewPublicError("invalid wallet")

	var publicErr *PublicError
	require.True(t, errors.As(err, &publicErr))
	assert.Equal(t, "invalid wallet", publicErr.Message())
	// the kind is attached with errors.Mark, which only cockroachdb's errors.Is can see
	assert.True(t, errors.Is(err, InvalidArgument))
	assert.False(t, errors.Is(err, NotFound))
}

func TestWithPublicMessage(t *testing.T) {
	assert.NoError(t, WithPublicMessage(nil, "validation error"))

	err := WithPublicMessage(errors.Wrap(NotFound, "rune"), "validation error")
	var publicErr *PublicError
	require.True(t, errors.As(err, &publicErr))
	assert.Equal(t, "validation error: rune: Not Found", publicErr.Message())
	assert.ErrorIs(t, err, NotFound)

	err = WithPublicMessage(errors.New("limit must be positive"), "")
	require.True(t, errors.As(err, &publicErr))
	assert.Equal(t, "limit must be positive", publicErr.Message())
}
