package signup

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type ResendVerificationMessage struct {
	Email      string `json:"email" example:"alice@example.com" doc:"Email address awaiting verification"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "user.resend_verification" }

// Validate checks the email syntax
func (e ResendVerificationMessage) Validate() error {
	return ValidateEmail(e.Email)
}

// ResendVerificationResponse reports whether a new link went out. Callers
// must not expose Sent to the client.
type ResendVerificationResponse struct {
	Sent bool
	User *User
}

type ResendVerificationHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	issuer   *TokenIssuer
	activity ActivitySink
	policy   ErrorPolicy
	logger   Logger
	now      Clock
}

// NewResendVerificationHandler creates a handler with sane defaults.
func NewResendVerificationHandler(repo RepositoryManager, mailer Mailer) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:     repo,
		mailer:   mailer,
		issuer:   NewTokenIssuer(DefaultTokenExpiration),
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithTokenIssuer sets the issuer used for replacement tokens.
func (h *ResendVerificationHandler) WithTokenIssuer(issuer *TokenIssuer) *ResendVerificationHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

// WithActivitySink sets the sink used to emit resend events.
func (h *ResendVerificationHandler) WithActivitySink(sink ActivitySink) *ResendVerificationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithErrorPolicy sets how store and mail failures are handled.
func (h *ResendVerificationHandler) WithErrorPolicy(policy ErrorPolicy) *ResendVerificationHandler {
	h.policy = policy
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used for activity timestamps.
func (h *ResendVerificationHandler) WithClock(clock Clock) *ResendVerificationHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	policy := normalizeErrorPolicy(h.policy, h.logger)
	resp := &ResendVerificationResponse{}

	user, err := h.repo.Users().Find(ctx, FieldEmail, event.Email)
	if err != nil && !repository.IsRecordNotFound(err) {
		if err := policy.Handle(ctx, "find user by email", err); err != nil {
			return err
		}
	}

	sm := NewVerificationStateMachine(h.repo.Users(),
		WithStateMachineClock(h.now),
		WithStateMachineActivitySink(h.activity),
		WithStateMachineLogger(h.logger),
	)

	// unknown and verified addresses get the same answer as pending ones,
	// verified accounts have to go through password reset instead
	if user == nil || sm.CurrentState(user) == VerificationStateVerified {
		h.logger.Debug("resend verification skipped, no pending account")
		h.respond(event, resp)
		return nil
	}

	token, expires, err := h.issuer.Issue()
	if err != nil {
		return err
	}

	updated, err := sm.Transition(ctx, user, TransitionIssue, WithTransitionToken(token, expires))
	if err != nil {
		if isTransitionRefused(err) {
			h.logger.Debug("resend verification refused: %v", err)
			h.respond(event, resp)
			return nil
		}
		if err := policy.Handle(ctx, "update signup token", err); err != nil {
			return err
		}
		// the old token is still the live one, do not mail a link that will not match
		h.respond(event, resp)
		return nil
	}

	notification := Notification{
		Kind:     NotificationResendVerification,
		Username: updated.Username,
		Email:    event.Email,
		Token:    token,
	}

	if err := h.mailer.Send(ctx, notification); err != nil {
		if err := policy.Handle(ctx, "send resend verification email", err); err != nil {
			return err
		}
	}

	resp.Sent = true
	resp.User = updated
	h.respond(event, resp)

	return nil
}

func (h *ResendVerificationHandler) respond(event ResendVerificationMessage, resp *ResendVerificationResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
