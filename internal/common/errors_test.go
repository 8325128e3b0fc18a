package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDefinitions(t *testing.T) {
	t.Parallel()

	errs := []error{
		ErrNotFound,
		ErrMalformedBlob,
		ErrStore,
		ErrNotLoaded,
		ErrShape,
	}

	t.Run("all errors are non-nil", func(t *testing.T) {
		t.Parallel()
		for i, err := range errs {
			require.NotNil(t, err, "error at index %d should not be nil", i)
		}
	})

	t.Run("all error messages are unique", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]bool)
		for _, err := range errs {
			msg := err.Error()
			assert.False(t, seen[msg], "duplicate error message: %s", msg)
			seen[msg] = true
		}
	})
}

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	t.Run("wrapped store error matches ErrStore", func(t *testing.T) {
		t.Parallel()
		wrapped := fmt.Errorf("%w: insert probes: constraint failed", ErrStore)
		assert.True(t, errors.Is(wrapped, ErrStore))
	})

	t.Run("string-concatenated error does not match", func(t *testing.T) {
		t.Parallel()
		fake := errors.New("wrapped: " + ErrNotFound.Error())
		assert.False(t, errors.Is(fake, ErrNotFound))
	})
}
