package signup

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Users is the store adapter the workflows read and write user records through.
// Lookups that find nothing return an error matching repository.IsRecordNotFound.
type Users interface {
	Find(ctx context.Context, field LookupField, value string) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	// ConsumeSignupToken persists next only if the stored signup token still equals token.
	ConsumeSignupToken(ctx context.Context, token string, next *User) (*User, error)
}

// Mailer dispatches transactional notifications
type Mailer interface {
	Send(ctx context.Context, notification Notification) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, notification Notification) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, notification Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

// PasswordHasher turns a cleartext password into the stored credential
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// Clock returns the current time
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SIGNUP "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SIGNUP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SIGNUP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SIGNUP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
