package entities

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsUnwrap(t *testing.T) {
	cause := errors.New("target closed")

	wrapped := fmt.Errorf("observe: %w", &PageNotReadyError{Cause: cause})
	var notReady *PageNotReadyError
	require.ErrorAs(t, wrapped, &notReady)
	assert.ErrorIs(t, wrapped, cause)

	staleWrapped := fmt.Errorf("click: %w", &ElementStaleError{Index: 4, Cause: cause})
	var stale *ElementStaleError
	require.ErrorAs(t, staleWrapped, &stale)
	assert.Equal(t, 4, stale.Index)
}

func TestIndexOutOfRangeErrorMessage(t *testing.T) {
	err := &IndexOutOfRangeError{Index: 12, Count: 5}
	assert.Contains(t, err.Error(), "12")
	assert.Contains(t, err.Error(), "5")
}

func TestNewSessionIDs(t *testing.T) {
	a := NewSession("webagent", "user")
	b := NewSession("webagent", "user")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
