package signup

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeFieldsRequired    = "FIELDS_REQUIRED"
	TextCodeUnsafeUsername    = "UNSAFE_USERNAME"
	TextCodeEmailInvalid      = "EMAIL_INVALID"
	TextCodePasswordInvalid   = "PASSWORD_INVALID"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeDuplicateUsername = "DUPLICATE_USERNAME"
	TextCodeTokenNotFound     = "TOKEN_NOT_FOUND"
)

// ErrAllFieldsRequired is returned when username, email or password are empty
var ErrAllFieldsRequired = goerrors.New("All fields are required", goerrors.CategoryValidation).
	WithTextCode(TextCodeFieldsRequired).
	WithCode(goerrors.CodeForbidden)

// ErrUnsafeUsername is returned when the username would change under URL encoding
var ErrUnsafeUsername = goerrors.New("Username may not contain any non-url-safe characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeUnsafeUsername).
	WithCode(goerrors.CodeForbidden)

// ErrEmailInvalid is returned for syntactically invalid addresses
var ErrEmailInvalid = goerrors.New("Email is invalid", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailInvalid).
	WithCode(goerrors.CodeForbidden)

// ErrTokenMalformed is returned for tokens that could never have been issued
var ErrTokenMalformed = goerrors.New("signup token is malformed", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateUsername is returned when the username is already registered
var ErrDuplicateUsername = goerrors.New("Username already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(goerrors.CodeForbidden)

// ErrTokenNotFound is used when a token matches no pending account
var ErrTokenNotFound = goerrors.New("signup token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// IsRejection reports whether err should be shown to the user as a
// form error instead of an internal failure.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}

	return richErr.Category == goerrors.CategoryValidation ||
		richErr.Category == goerrors.CategoryConflict
}

// RejectionMessage returns the human readable message carried by err
func RejectionMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
