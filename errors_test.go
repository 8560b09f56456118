package signup_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
)

func TestIsRejection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "Fields required", err: signup.ErrAllFieldsRequired, expected: true},
		{name: "Unsafe username", err: signup.ErrUnsafeUsername, expected: true},
		{name: "Invalid email", err: signup.ErrEmailInvalid, expected: true},
		{name: "Duplicate username", err: signup.ErrDuplicateUsername, expected: true},
		{name: "Token not found", err: signup.ErrTokenNotFound, expected: false},
		{name: "Plain error", err: errors.New("boom"), expected: false},
		{
			name:     "Internal rich error",
			err:      goerrors.New("db down", goerrors.CategoryInternal),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, signup.IsRejection(tt.err))
		})
	}
}

func TestRejectionMessage(t *testing.T) {
	assert.Equal(t, "Username already taken", signup.RejectionMessage(signup.ErrDuplicateUsername))
	assert.Equal(t, "boom", signup.RejectionMessage(errors.New("boom")))
}

func TestSentinelTextCodes(t *testing.T) {
	assert.Equal(t, signup.TextCodeFieldsRequired, signup.ErrAllFieldsRequired.TextCode)
	assert.Equal(t, signup.TextCodeDuplicateUsername, signup.ErrDuplicateUsername.TextCode)
	assert.Equal(t, goerrors.CategoryConflict, signup.ErrDuplicateUsername.Category)
	assert.Equal(t, goerrors.CategoryValidation, signup.ErrEmailInvalid.Category)
}
