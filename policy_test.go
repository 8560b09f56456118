package signup_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	testLogger
	errors []string
}

func (r *recordingLogger) Error(format string, _ ...any) {
	r.errors = append(r.errors, format)
}

func TestBestEffortPolicySwallowsErrors(t *testing.T) {
	logger := &recordingLogger{}
	policy := signup.BestEffortPolicy(logger)

	err := policy.Handle(context.Background(), "send signup email", errors.New("smtp down"))
	assert.NoError(t, err)
	assert.Len(t, logger.errors, 1)
}

func TestStrictPolicyWrapsErrors(t *testing.T) {
	logger := &recordingLogger{}
	policy := signup.StrictPolicy(logger)

	err := policy.Handle(context.Background(), "register user", errors.New("disk full"))
	require.Error(t, err)
	assert.Len(t, logger.errors, 1)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
	assert.Equal(t, "register user", richErr.Metadata["operation"])
}

func TestErrorPolicyFunc(t *testing.T) {
	var seen string
	policy := signup.ErrorPolicyFunc(func(_ context.Context, operation string, err error) error {
		seen = operation
		return err
	})

	boom := errors.New("boom")
	assert.Equal(t, boom, policy.Handle(context.Background(), "find user", boom))
	assert.Equal(t, "find user", seen)

	var nilPolicy signup.ErrorPolicyFunc
	assert.NoError(t, nilPolicy.Handle(context.Background(), "noop", boom))
}
