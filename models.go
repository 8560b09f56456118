package signup

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LookupField names a column the store can find users by
type LookupField string

const (
	FieldUsername    LookupField = "username"
	FieldEmail       LookupField = "email"
	FieldSignupToken LookupField = "signup_token"
)

// User is the user model. Workflows treat a loaded record as a snapshot and
// derive the next state through the value methods below, which never mutate
// the receiver.
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username           string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash       string     `bun:"password_hash,notnull" json:"-"`
	EmailVerified      bool       `bun:"is_email_verified,notnull" json:"is_email_verified"`
	EmailVerifiedAt    *time.Time `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	SignupToken        string     `bun:"signup_token,nullzero" json:"-"`
	SignupTokenExpires *time.Time `bun:"signup_token_expires,nullzero" json:"signup_token_expires,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// VerificationState is the position of a user in the email verification
// lifecycle.
type VerificationState string

const (
	VerificationStateNoToken  VerificationState = "no_token"
	VerificationStatePending  VerificationState = "pending"
	VerificationStateVerified VerificationState = "verified"
)

// VerificationState derives the lifecycle state from the stored fields.
// Verified wins over a stray token.
func (u User) VerificationState() VerificationState {
	switch {
	case u.EmailVerified:
		return VerificationStateVerified
	case u.SignupToken != "":
		return VerificationStatePending
	default:
		return VerificationStateNoToken
	}
}

// HasPendingToken reports whether the user is waiting on email verification
func (u User) HasPendingToken() bool {
	return u.SignupToken != "" && u.SignupTokenExpires != nil
}

// TokenExpired reports whether the pending token expired before now.
// A token expiring exactly at now is still valid.
func (u User) TokenExpired(now time.Time) bool {
	if u.SignupTokenExpires == nil {
		return true
	}
	return u.SignupTokenExpires.Before(now)
}

// WithSignupToken returns a copy carrying a new pending token. It does not
// check the current state, VerificationStateMachine guards transitions.
func (u User) WithSignupToken(token string, expires time.Time) *User {
	next := u.clone()
	next.SignupToken = token
	next.SignupTokenExpires = &expires
	return next
}

// WithoutSignupToken returns a copy with token and expiry cleared
func (u User) WithoutSignupToken() *User {
	next := u.clone()
	next.SignupToken = ""
	next.SignupTokenExpires = nil
	return next
}

// Verified returns the terminal verified state of u at the given time
func (u User) Verified(at time.Time) *User {
	next := u.WithoutSignupToken()
	next.EmailVerified = true
	next.EmailVerifiedAt = &at
	return next
}

func (u User) clone() *User {
	next := u
	next.EmailVerifiedAt = copyTime(u.EmailVerifiedAt)
	next.SignupTokenExpires = copyTime(u.SignupTokenExpires)
	next.CreatedAt = copyTime(u.CreatedAt)
	next.UpdatedAt = copyTime(u.UpdatedAt)
	return &next
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
