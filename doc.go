// Package signup provides user registration with email verification for
// fiber applications, backed by a Bun users repository.
//
// Signup lifecycle:
//   - A signup stores the user with a random signup token and its expiry,
//     then mails a verification link built from the token.
//   - Opening the link verifies the email while the token is valid. An
//     expired link clears the token, the user asks for a new one through the
//     resend form.
//   - Tokens are consumed with a compare-and-set on the stored token, so a
//     link verifies an account at most once even under concurrent requests.
//
// Enumeration resistance:
//   - Signing up with a registered email answers exactly like a fresh signup
//     and notifies the owner of the address instead.
//   - Resending verification for an unknown or verified address answers like
//     a successful resend and sends nothing.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter invoked at every signup
//     step. Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking the signup flow.
//
// Error policy:
//   - Mailer and store failures after validation are routed through an
//     ErrorPolicy. BestEffortPolicy logs and keeps the client response
//     unchanged, StrictPolicy surfaces them as internal errors.
package signup
