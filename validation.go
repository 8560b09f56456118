package signup

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	// emailPattern follows the input[type=email] pattern browsers have used for years
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

	// urlSafePattern is the set of characters encodeURIComponent leaves as is
	urlSafePattern = regexp.MustCompile(`^[A-Za-z0-9\-_.!~*'()]*$`)

	tokenPattern = regexp.MustCompile(
		`^(?:[0-9a-f]{22}|(?i:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}))$`,
	)
)

// ValidateSignup checks the signup form and returns the first failing rule.
// Rules run in a fixed order: presence, username safety, email syntax.
func ValidateSignup(username, email, password string) error {
	for _, value := range []string{username, email, password} {
		if err := validation.Validate(value, validation.Required); err != nil {
			return ErrAllFieldsRequired
		}
	}

	if err := validation.Validate(username, validation.Match(urlSafePattern)); err != nil {
		return ErrUnsafeUsername
	}

	return ValidateEmail(email)
}

// ValidateEmail checks the syntax of a single email address, empty
// addresses are invalid.
func ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Match(emailPattern),
	)
	if err != nil {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateToken rejects tokens that could not have been issued so
// callers can skip the store lookup. Accepted forms are 22 lowercase hex
// characters or a hyphenated UUID in any case. Uppercase 22 character
// tokens are rejected.
func ValidateToken(token string) error {
	err := validation.Validate(token,
		validation.Required,
		validation.By(func(value any) error {
			s, _ := value.(string)
			if !tokenPattern.MatchString(s) {
				return ErrTokenMalformed
			}
			return nil
		}),
	)
	if err != nil {
		return ErrTokenMalformed
	}
	return nil
}
