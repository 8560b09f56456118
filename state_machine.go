package signup

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidTransition = "INVALID_VERIFICATION_TRANSITION"
	TextCodeTerminalState     = "TERMINAL_VERIFICATION_STATE"
)

// ErrInvalidTransition is returned when a transition is not allowed from the current state.
var ErrInvalidTransition = goerrors.New("invalid verification state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move a verified user.
var ErrTerminalState = goerrors.New("verification state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// VerificationTransition names an edge of the verification lifecycle.
type VerificationTransition string

const (
	// TransitionIssue stores a fresh signup token: no_token|pending -> pending
	TransitionIssue VerificationTransition = "issue"
	// TransitionVerify consumes a valid token: pending -> verified
	TransitionVerify VerificationTransition = "verify"
	// TransitionExpire clears an expired token: pending -> no_token
	TransitionExpire VerificationTransition = "expire"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks. Next is the snapshot about to be
// stored in before hooks and the stored snapshot in after hooks.
type TransitionContext struct {
	Transition VerificationTransition
	User       *User
	Next       *User
	From       VerificationState
	To         VerificationState
	Meta       TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// VerificationStateMachine guards the verification lifecycle:
//
//	[no_token] --issue--> [pending] --verify--> [verified]
//	[pending]  --issue--> [pending]
//	[pending]  --expire-> [no_token]
//
// verified is terminal.
type VerificationStateMachine interface {
	// Next computes the snapshot a transition would produce without storing it.
	Next(user *User, transition VerificationTransition, opts ...TransitionOption) (*User, error)
	// Transition computes, stores and announces the next snapshot.
	Transition(ctx context.Context, user *User, transition VerificationTransition, opts ...TransitionOption) (*User, error)
	CurrentState(user *User) VerificationState
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*verificationStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock Clock) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish transitions.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *verificationStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// By default the hook error is returned and the transition stops.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *verificationStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionToken sets the token and expiry stored by TransitionIssue.
func WithTransitionToken(token string, expires time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.token = token
		opts.expires = expires
	}
}

// WithTransitionTime sets the instant used to check expiry and stamp
// verification, defaults to the state machine clock.
func WithTransitionTime(at time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.at = &at
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the snapshot is stored.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the snapshot is stored.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

type edge struct {
	from []VerificationState
	to   VerificationState
}

// NewVerificationStateMachine returns the default implementation backed by
// the provided store.
func NewVerificationStateMachine(users Users, opts ...StateMachineOption) VerificationStateMachine {
	sm := &verificationStateMachine{
		users: users,
		edges: map[VerificationTransition]edge{
			TransitionIssue: {
				from: []VerificationState{VerificationStateNoToken, VerificationStatePending},
				to:   VerificationStatePending,
			},
			TransitionVerify: {
				from: []VerificationState{VerificationStatePending},
				to:   VerificationStateVerified,
			},
			TransitionExpire: {
				from: []VerificationState{VerificationStatePending},
				to:   VerificationStateNoToken,
			},
		},
		events: map[VerificationTransition]ActivityEventType{
			TransitionIssue:  ActivityEventVerificationResent,
			TransitionVerify: ActivityEventEmailVerified,
			TransitionExpire: ActivityEventLinkExpired,
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type verificationStateMachine struct {
	users            Users
	edges            map[VerificationTransition]edge
	events           map[VerificationTransition]ActivityEventType
	now              Clock
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	token       string
	expires     time.Time
	at          *time.Time
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *verificationStateMachine) CurrentState(user *User) VerificationState {
	if user == nil {
		return ""
	}
	return user.VerificationState()
}

func (sm *verificationStateMachine) Next(user *User, transition VerificationTransition, opts ...TransitionOption) (*User, error) {
	options := sm.buildTransitionOptions(opts...)
	next, _, err := sm.next(user, transition, options)
	return next, err
}

func (sm *verificationStateMachine) Transition(ctx context.Context, user *User, transition VerificationTransition, opts ...TransitionOption) (*User, error) {
	options := sm.buildTransitionOptions(opts...)

	next, at, err := sm.next(user, transition, options)
	if err != nil {
		return nil, err
	}

	tc := TransitionContext{
		Transition: transition,
		User:       user,
		Next:       next,
		From:       user.VerificationState(),
		To:         sm.edges[transition].to,
		Meta:       options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	stored, err := sm.persist(ctx, user, transition, next)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		stored = next
	}
	tc.Next = stored

	if err := sm.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return nil, err
	}

	event := newUserEvent(sm.events[transition], stored, at)
	event.Metadata = sm.transitionMetadata(tc)
	sm.recordActivity(ctx, event)

	return stored, nil
}

func (sm *verificationStateMachine) next(user *User, transition VerificationTransition, options *transitionOptions) (*User, time.Time, error) {
	at := sm.now()
	if options.at != nil {
		at = *options.at
	}

	if user == nil {
		return nil, at, ErrInvalidTransition.WithMetadata(map[string]any{
			"transition": transition,
			"reason":     "user is nil",
		})
	}

	from := user.VerificationState()
	if from == VerificationStateVerified {
		return nil, at, ErrTerminalState.WithMetadata(map[string]any{
			"from":       from,
			"transition": transition,
		})
	}

	e, ok := sm.edges[transition]
	if !ok || !e.allows(from) {
		return nil, at, ErrInvalidTransition.WithMetadata(map[string]any{
			"from":       from,
			"transition": transition,
		})
	}

	switch transition {
	case TransitionIssue:
		if options.token == "" {
			return nil, at, ErrInvalidTransition.WithMetadata(map[string]any{
				"transition": transition,
				"reason":     "token is empty",
			})
		}
		return user.WithSignupToken(options.token, options.expires), at, nil
	case TransitionVerify:
		if user.TokenExpired(at) {
			return nil, at, ErrInvalidTransition.WithMetadata(map[string]any{
				"transition": transition,
				"reason":     "token expired",
			})
		}
		return user.Verified(at), at, nil
	default:
		if !user.TokenExpired(at) {
			return nil, at, ErrInvalidTransition.WithMetadata(map[string]any{
				"transition": transition,
				"reason":     "token still valid",
			})
		}
		return user.WithoutSignupToken(), at, nil
	}
}

// persist stores next. Token consuming transitions compare against the
// token the snapshot was loaded with so only one request can win.
func (sm *verificationStateMachine) persist(ctx context.Context, user *User, transition VerificationTransition, next *User) (*User, error) {
	if transition == TransitionIssue {
		return sm.users.Update(ctx, next)
	}
	return sm.users.ConsumeSignupToken(ctx, user.SignupToken, next)
}

func (e edge) allows(from VerificationState) bool {
	for _, state := range e.from {
		if state == from {
			return true
		}
	}
	return false
}

func (sm *verificationStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *verificationStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *verificationStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *verificationStateMachine) transitionMetadata(tc TransitionContext) map[string]any {
	result := map[string]any{
		"from_state": string(tc.From),
		"to_state":   string(tc.To),
	}
	if tc.Meta.Reason != "" {
		result["reason"] = tc.Meta.Reason
	}
	for k, v := range tc.Meta.Metadata {
		result[k] = v
	}
	return result
}

// isTransitionRefused reports whether err came from the state machine
// rejecting a transition rather than from the store.
func isTransitionRefused(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeInvalidTransition ||
		richErr.TextCode == TextCodeTerminalState
}
