package signup

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type VerifyAccountMessage struct {
	Token      string `json:"token" example:"0c1f9d2e-6a7b-4c3d-9e8f-112233445566" doc:"Signup token from the verification link"`
	OnResponse func(resp *VerifyAccountResponse)
}

func (e VerifyAccountMessage) Type() string { return "user.verify_account" }

func (e VerifyAccountMessage) Validate() error {
	return ValidateToken(e.Token)
}

// VerifyAccountResponse is the outcome of following a verification link.
// Exactly one of NotFound, Expired or Verified is set.
type VerifyAccountResponse struct {
	NotFound bool
	Expired  bool
	Verified bool
	User     *User
}

type VerifyAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	policy   ErrorPolicy
	logger   Logger
	now      Clock
}

// NewVerifyAccountHandler creates a handler with sane defaults.
func NewVerifyAccountHandler(repo RepositoryManager) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithErrorPolicy sets how store failures are handled.
func (h *VerifyAccountHandler) WithErrorPolicy(policy ErrorPolicy) *VerifyAccountHandler {
	h.policy = policy
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used to check expiry and stamp verification.
func (h *VerifyAccountHandler) WithClock(clock Clock) *VerifyAccountHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	// malformed tokens are indistinguishable from unknown ones and never reach the store
	if err := event.Validate(); err != nil {
		h.logger.Debug("verification token rejected: %v", err)
		h.respond(event, &VerifyAccountResponse{NotFound: true})
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	policy := normalizeErrorPolicy(h.policy, h.logger)
	users := h.repo.Users()

	user, err := users.Find(ctx, FieldSignupToken, event.Token)
	if err != nil && !repository.IsRecordNotFound(err) {
		if err := policy.Handle(ctx, "find user by signup token", err); err != nil {
			return err
		}
	}

	if user == nil {
		h.respond(event, &VerifyAccountResponse{NotFound: true})
		return nil
	}

	now := h.now()

	sm := NewVerificationStateMachine(users,
		WithStateMachineClock(h.now),
		WithStateMachineActivitySink(h.activity),
		WithStateMachineLogger(h.logger),
	)

	transition := TransitionVerify
	if user.TokenExpired(now) {
		transition = TransitionExpire
	}

	stored, err := sm.Transition(ctx, user, transition, WithTransitionTime(now))
	if err != nil {
		return h.transitionFailed(ctx, policy, sm, user, transition, now, err, event)
	}

	h.respond(event, verifyResponse(transition, stored))

	return nil
}

// transitionFailed handles a transition that did not get stored. Losing the
// race to another request means the token is gone, which is reported as not
// found. Store failures the policy lets through answer as if the write had
// succeeded.
func (h *VerifyAccountHandler) transitionFailed(ctx context.Context, policy ErrorPolicy, sm VerificationStateMachine, user *User, transition VerificationTransition, now time.Time, err error, event VerifyAccountMessage) error {
	if repository.IsRecordNotFound(err) {
		h.logger.Debug("signup token consumed concurrently")
		h.respond(event, &VerifyAccountResponse{NotFound: true})
		return nil
	}

	if isTransitionRefused(err) {
		h.logger.Debug("verification refused: %v", err)
		h.respond(event, &VerifyAccountResponse{NotFound: true})
		return nil
	}

	if err := policy.Handle(ctx, string(transition)+" signup token", err); err != nil {
		return err
	}

	next, nerr := sm.Next(user, transition, WithTransitionTime(now))
	if nerr != nil {
		next = user
	}

	h.respond(event, verifyResponse(transition, next))
	return nil
}

func verifyResponse(transition VerificationTransition, user *User) *VerifyAccountResponse {
	if transition == TransitionExpire {
		return &VerifyAccountResponse{Expired: true, User: user}
	}
	return &VerifyAccountResponse{Verified: true, User: user}
}

func (h *VerifyAccountHandler) respond(event VerifyAccountMessage, resp *VerifyAccountResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
