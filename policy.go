package signup

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorPolicy decides what happens when a collaborator (store, mailer,
// hasher) fails in the middle of a workflow. Returning nil lets the workflow
// continue as if the call had been a no-op, returning an error aborts it.
type ErrorPolicy interface {
	Handle(ctx context.Context, operation string, err error) error
}

// ErrorPolicyFunc adapts a function to the ErrorPolicy interface.
type ErrorPolicyFunc func(ctx context.Context, operation string, err error) error

// Handle implements ErrorPolicy.
func (f ErrorPolicyFunc) Handle(ctx context.Context, operation string, err error) error {
	if f == nil {
		return nil
	}
	return f(ctx, operation, err)
}

// BestEffortPolicy logs collaborator failures and keeps going
func BestEffortPolicy(logger Logger) ErrorPolicy {
	if logger == nil {
		logger = defLogger{}
	}
	return ErrorPolicyFunc(func(ctx context.Context, operation string, err error) error {
		logger.Error("%s failed: %v", operation, err)
		return nil
	})
}

// StrictPolicy logs collaborator failures and aborts the workflow with an
// internal error.
func StrictPolicy(logger Logger) ErrorPolicy {
	if logger == nil {
		logger = defLogger{}
	}
	return ErrorPolicyFunc(func(ctx context.Context, operation string, err error) error {
		logger.Error("%s failed: %v", operation, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, operation+" failed").
			WithMetadata(map[string]any{
				"operation": operation,
			})
	})
}

func normalizeErrorPolicy(p ErrorPolicy, logger Logger) ErrorPolicy {
	if p == nil {
		return BestEffortPolicy(logger)
	}
	return p
}
