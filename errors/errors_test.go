package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesByType(t *testing.T) {
	err := NewDuplicatePlugin("math", "sig-1")

	assert.True(t, stderrors.Is(err, ErrDuplicatePlugin))
	assert.False(t, stderrors.Is(err, ErrDuplicateNamespace))

	wrapped := fmt.Errorf("register: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrDuplicatePlugin))
}

func TestNewActivation_KeepsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewActivation("worker", cause)

	require.ErrorIs(t, err, ErrActivation)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "worker", err.Details["plugin"])
	assert.Contains(t, err.Error(), "boom")
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := stderrors.New("plain")
	appErr := FromError(plain)
	assert.Equal(t, ErrorTypeUnknown, appErr.Type)
	assert.Same(t, plain, appErr.InnerError)

	typed := NewNotFound("namespace", "math")
	assert.Same(t, typed, FromError(fmt.Errorf("lookup: %w", typed)))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("x")))
	assert.Equal(t, ErrorTypeMalformedEvent, TypeOf(NewMalformedEvent("type", "is required")))
}

func TestRecover(t *testing.T) {
	assert.Nil(t, Recover(nil))

	tests := []struct {
		name  string
		value any
	}{
		{"error", stderrors.New("bad")},
		{"string", "bad"},
		{"other", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Recover(tt.value)
			require.NotNil(t, err)
			assert.Equal(t, ErrorTypeInternal, err.Type)
			assert.NotEmpty(t, err.Stack)
			assert.Equal(t, fmt.Sprint(tt.value), err.Details["panic"])
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusConflict, StatusOf(NewDuplicateNamespace("math")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(stderrors.New("x")))
}

func TestErrorChain(t *testing.T) {
	chain := NewErrorChain()
	assert.NoError(t, chain.ErrOrNil())

	chain.Add(nil)
	chain.Add(NewInternal("first"))
	chain.Add(stderrors.New("second"))

	require.Error(t, chain.ErrOrNil())
	assert.Len(t, chain.Errors(), 2)
	assert.True(t, chain.HasType(ErrorTypeInternal))
	assert.Equal(t, "first | second", chain.Error())
	assert.ErrorIs(t, chain, &AppError{Type: ErrorTypeInternal})
}
