package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(KindNotFound, "snapshot missing")
	assert.Equal(t, "NotFound: snapshot missing", plain.Error())

	formatted := Newf(KindInvalidOrder, "sequence %d before %d", 2, 5)
	assert.Equal(t, "InvalidOrder: sequence 2 before 5", formatted.Error())

	wrapped := Wrap(KindStorageError, "write failed", errors.New("disk full"))
	assert.Equal(t, "StorageError: write failed: disk full", wrapped.Error())
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindStorageError, "write failed", nil))
}

func TestKindOf(t *testing.T) {
	err := New(KindScopeMismatch, "different scopes")
	assert.Equal(t, KindScopeMismatch, KindOf(err))
	assert.True(t, IsKind(err, KindScopeMismatch))
	assert.False(t, IsKind(err, KindNotFound))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindCollectorUnavailable, "endpoint down")
	outer := fmt.Errorf("cycle failed: %w", inner)

	assert.Equal(t, KindCollectorUnavailable, KindOf(outer))
	assert.True(t, IsRetryable(outer))

	var classified *Error
	require.True(t, errors.As(outer, &classified))
	assert.Equal(t, "endpoint down", classified.Message)
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryable(New(KindCollectorUnavailable, "x")))

	for _, kind := range []Kind{
		KindScopeMismatch, KindInvalidOrder, KindNotFound,
		KindStorageError, KindCycleTimeout, KindValidation,
	} {
		assert.False(t, IsRetryable(New(kind, "x")), "kind %s must not be retryable", kind)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(KindNotFound, "gone")))
	assert.False(t, IsNotFound(New(KindStorageError, "broken")))
	assert.False(t, IsNotFound(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindCycleTimeout, "cycle overran", cause)
	assert.ErrorIs(t, err, cause)
}
