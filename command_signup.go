package signup

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

const (
	// SignupStageCreated a new account was stored and the verification mail sent
	SignupStageCreated = "created"
	// SignupStageEmailTaken the address was already registered, its owner was notified
	SignupStageEmailTaken = "email-taken"
)

type SignupMessage struct {
	Username   string `json:"username" example:"alice" doc:"URL safe username"`
	Email      string `json:"email" example:"alice@example.com" doc:"Email address to verify"`
	Password   string `json:"password" example:"secret1" doc:"Password"`
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "user.signup" }

// Validate runs the signup form rules
func (e SignupMessage) Validate() error {
	return ValidateSignup(e.Username, e.Email, e.Password)
}

// SignupResponse is handed to OnResponse. Callers must render the same
// acknowledgement for every stage.
type SignupResponse struct {
	Stage string
	User  *User
}

type SignupHandler struct {
	repo      RepositoryManager
	mailer    Mailer
	issuer    *TokenIssuer
	hasher    PasswordHasher
	activity  ActivitySink
	policy    ErrorPolicy
	logger    Logger
	now       Clock
	useHashid bool
}

// NewSignupHandler creates a handler with sane defaults.
func NewSignupHandler(repo RepositoryManager, mailer Mailer) *SignupHandler {
	return &SignupHandler{
		repo:     repo,
		mailer:   mailer,
		issuer:   NewTokenIssuer(DefaultTokenExpiration),
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithTokenIssuer sets the issuer used for new signup tokens.
func (h *SignupHandler) WithTokenIssuer(issuer *TokenIssuer) *SignupHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

// WithPasswordHasher overrides how passwords are hashed before storage.
func (h *SignupHandler) WithPasswordHasher(hasher PasswordHasher) *SignupHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithActivitySink sets the sink used to emit signup events.
func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithErrorPolicy sets how store and mail failures are handled.
func (h *SignupHandler) WithErrorPolicy(policy ErrorPolicy) *SignupHandler {
	h.policy = policy
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used for activity timestamps.
func (h *SignupHandler) WithClock(clock Clock) *SignupHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithHashid derives user ids from the email address instead of random UUIDs.
func (h *SignupHandler) WithHashid(enabled bool) *SignupHandler {
	h.useHashid = enabled
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	policy := normalizeErrorPolicy(h.policy, h.logger)
	users := h.repo.Users()

	existing, err := users.Find(ctx, FieldUsername, event.Username)
	if err != nil && !repository.IsRecordNotFound(err) {
		if err := policy.Handle(ctx, "find user by username", err); err != nil {
			return err
		}
	}

	if existing != nil {
		h.logger.Debug("signup rejected, username %q already taken", event.Username)
		return ErrDuplicateUsername
	}

	existing, err = users.Find(ctx, FieldEmail, event.Email)
	if err != nil && !repository.IsRecordNotFound(err) {
		if err := policy.Handle(ctx, "find user by email", err); err != nil {
			return err
		}
	}

	if existing != nil {
		return h.notifyEmailTaken(ctx, policy, existing, event)
	}

	return h.register(ctx, policy, event)
}

func (h *SignupHandler) notifyEmailTaken(ctx context.Context, policy ErrorPolicy, existing *User, event SignupMessage) error {
	h.logger.Debug("signup email already registered, notifying owner")

	notification := Notification{
		Kind:     NotificationSignupTaken,
		Username: existing.Username,
		Email:    existing.Email,
	}

	if err := h.mailer.Send(ctx, notification); err != nil {
		if err := policy.Handle(ctx, "send signup taken email", err); err != nil {
			return err
		}
	}

	h.recordActivity(ctx, newUserEvent(ActivityEventDuplicateEmail, existing, h.now()))

	h.respond(event, &SignupResponse{Stage: SignupStageEmailTaken})

	return nil
}

func (h *SignupHandler) register(ctx context.Context, policy ErrorPolicy, event SignupMessage) error {
	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "Password is invalid").
			WithTextCode(TextCodePasswordInvalid)
	}

	token, expires, err := h.issuer.Issue()
	if err != nil {
		return err
	}

	record := User{
		Username:     event.Username,
		Email:        event.Email,
		PasswordHash: hash,
	}

	if h.useHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			record.ID = id
		}
	}

	sm := NewVerificationStateMachine(h.repo.Users(), WithStateMachineClock(h.now))

	pending, err := sm.Next(&record, TransitionIssue, WithTransitionToken(token, expires))
	if err != nil {
		return err
	}

	user, err := h.repo.Users().Register(ctx, pending)
	if err != nil {
		// a concurrent signup may have claimed the username or email after
		// the lookups, the unique indexes reject the insert
		if existing, field := h.findConflict(ctx, event); existing != nil {
			if field == FieldUsername {
				h.logger.Debug("signup lost race for username %q", event.Username)
				return ErrDuplicateUsername
			}
			return h.notifyEmailTaken(ctx, policy, existing, event)
		}

		if err := policy.Handle(ctx, "register user", err); err != nil {
			return err
		}
		// nothing was stored, so there is no link worth mailing
		h.respond(event, &SignupResponse{Stage: SignupStageCreated})
		return nil
	}

	notification := Notification{
		Kind:     NotificationSignup,
		Username: user.Username,
		Email:    user.Email,
		Token:    user.SignupToken,
	}

	if err := h.mailer.Send(ctx, notification); err != nil {
		if err := policy.Handle(ctx, "send signup email", err); err != nil {
			return err
		}
	}

	h.recordActivity(ctx, newUserEvent(ActivityEventSignupCreated, user, h.now()))

	h.respond(event, &SignupResponse{Stage: SignupStageCreated, User: user})

	return nil
}

// findConflict looks for the account that made Register fail, in the same
// order as the initial checks.
func (h *SignupHandler) findConflict(ctx context.Context, event SignupMessage) (*User, LookupField) {
	users := h.repo.Users()
	for _, lookup := range []struct {
		field LookupField
		value string
	}{
		{FieldUsername, event.Username},
		{FieldEmail, event.Email},
	} {
		if existing, err := users.Find(ctx, lookup.field, lookup.value); err == nil && existing != nil {
			return existing, lookup.field
		}
	}
	return nil, ""
}

func (h *SignupHandler) respond(event SignupMessage, resp *SignupResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}

func (h *SignupHandler) recordActivity(ctx context.Context, event ActivityEvent) {
	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during signup: %v", err)
	}
}
