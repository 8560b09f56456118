package signup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	signup "github.com/goliatone/go-signup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newResendHandler(repo *MockRepositoryManager, mailer *MockMailer, sink signup.ActivitySink) *signup.ResendVerificationHandler {
	return signup.NewResendVerificationHandler(repo, mailer).
		WithTokenIssuer(signup.NewTokenIssuer(2 * time.Hour).WithClock(fixedClock)).
		WithActivitySink(sink).
		WithLogger(testLogger{}).
		WithClock(fixedClock)
}

func pendingUser(token string, expires time.Time) *signup.User {
	return signup.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
	}.WithSignupToken(token, expires)
}

func TestResendVerificationIssuesNewToken(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	mailer := &MockMailer{}
	sink := &MockActivitySink{}

	oldToken := uuid.NewString()
	user := pendingUser(oldToken, fixedNow.Add(-time.Minute))

	var updated *signup.User
	var resp *signup.ResendVerificationResponse

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldEmail, "alice@example.com").Return(user, nil).Once()
	users.On("Update", mock.Anything, mock.AnythingOfType("*signup.User")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*signup.User)
		}).
		Return(echoUser, nil).Once()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(n signup.Notification) bool {
		return n.Kind == signup.NotificationResendVerification &&
			n.Username == "alice" &&
			n.Email == "alice@example.com" &&
			n.Token == updated.SignupToken
	})).Return(nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e signup.ActivityEvent) bool {
		return e.EventType == signup.ActivityEventVerificationResent
	})).Return(nil).Once()

	err := newResendHandler(repo, mailer, sink).Execute(context.Background(), signup.ResendVerificationMessage{
		Email: "alice@example.com",
		OnResponse: func(r *signup.ResendVerificationResponse) {
			resp = r
		},
	})
	require.NoError(t, err)

	require.NotNil(t, updated)
	assert.NotEqual(t, oldToken, updated.SignupToken)
	assert.NoError(t, signup.ValidateToken(updated.SignupToken))
	assert.Equal(t, fixedNow.Add(2*time.Hour), *updated.SignupTokenExpires)
	assert.False(t, updated.EmailVerified)

	// the loaded snapshot is left untouched
	assert.Equal(t, oldToken, user.SignupToken)

	require.NotNil(t, resp)
	assert.True(t, resp.Sent)

	users.AssertExpectations(t)
	mailer.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestResendVerificationSilentOutcomes(t *testing.T) {
	verified := pendingUser(uuid.NewString(), fixedNow.Add(time.Hour)).Verified(fixedNow)

	tests := []struct {
		name string
		user *signup.User
		err  error
	}{
		{"unknown email", nil, repository.NewRecordNotFound()},
		{"verified account", verified, nil},
		{"store failure", nil, errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepositoryManager{}
			users := &MockUsers{}
			mailer := &MockMailer{}
			sink := &MockActivitySink{}

			repo.On("Users").Return(users)
			users.On("Find", mock.Anything, signup.FieldEmail, "alice@example.com").Return(tt.user, tt.err).Once()

			var resp *signup.ResendVerificationResponse
			err := newResendHandler(repo, mailer, sink).Execute(context.Background(), signup.ResendVerificationMessage{
				Email: "alice@example.com",
				OnResponse: func(r *signup.ResendVerificationResponse) {
					resp = r
				},
			})

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.False(t, resp.Sent)
			users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
			sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}

func TestResendVerificationRejectsInvalidEmail(t *testing.T) {
	repo := &MockRepositoryManager{}
	mailer := &MockMailer{}

	for _, email := range []string{"", "alice", "alice@example"} {
		err := newResendHandler(repo, mailer, nil).Execute(context.Background(), signup.ResendVerificationMessage{
			Email: email,
		})
		assert.ErrorIs(t, err, signup.ErrEmailInvalid, email)
		assert.Equal(t, "Email is invalid", signup.RejectionMessage(err))
	}

	repo.AssertNotCalled(t, "Users")
}

func TestResendVerificationUpdateFailureSkipsMail(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	mailer := &MockMailer{}

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldEmail, "alice@example.com").
		Return(pendingUser(uuid.NewString(), fixedNow), nil).Once()
	users.On("Update", mock.Anything, mock.Anything).Return(nil, errors.New("locked")).Once()

	err := newResendHandler(repo, mailer, nil).Execute(context.Background(), signup.ResendVerificationMessage{
		Email: "alice@example.com",
	})

	require.NoError(t, err)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestResendVerificationStrictUpdateFailure(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	mailer := &MockMailer{}

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldEmail, "alice@example.com").
		Return(pendingUser(uuid.NewString(), fixedNow), nil).Once()
	users.On("Update", mock.Anything, mock.Anything).Return(nil, errors.New("locked")).Once()

	err := newResendHandler(repo, mailer, nil).
		WithErrorPolicy(signup.StrictPolicy(testLogger{})).
		Execute(context.Background(), signup.ResendVerificationMessage{
			Email: "alice@example.com",
		})

	require.Error(t, err)
	assert.False(t, signup.IsRejection(err))
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
