package signup

// NotificationKind selects the email template a Mailer sends
type NotificationKind string

const (
	// NotificationSignup carries the verification link for a new account
	NotificationSignup NotificationKind = "email_signup"
	// NotificationSignupTaken tells an existing owner someone tried to register their address
	NotificationSignupTaken NotificationKind = "email_signup_taken"
	// NotificationResendVerification carries a freshly issued verification link
	NotificationResendVerification NotificationKind = "email_resend_verification"
)

// Notification is the payload handed to a Mailer. Token is empty for
// NotificationSignupTaken.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Token    string           `json:"token,omitempty"`
}
