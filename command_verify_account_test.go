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

func newVerifyHandler(repo *MockRepositoryManager, sink signup.ActivitySink) *signup.VerifyAccountHandler {
	return signup.NewVerifyAccountHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{}).
		WithClock(fixedClock)
}

func verify(t *testing.T, h *signup.VerifyAccountHandler, token string) *signup.VerifyAccountResponse {
	t.Helper()

	var resp *signup.VerifyAccountResponse
	err := h.Execute(context.Background(), signup.VerifyAccountMessage{
		Token: token,
		OnResponse: func(r *signup.VerifyAccountResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestVerifyAccountMarksUserVerified(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	sink := &MockActivitySink{}

	token := uuid.NewString()
	user := pendingUser(token, fixedNow.Add(time.Hour))

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).Return(user, nil).Once()
	users.On("ConsumeSignupToken", mock.Anything, token, mock.MatchedBy(func(u *signup.User) bool {
		return u.EmailVerified &&
			u.EmailVerifiedAt != nil && u.EmailVerifiedAt.Equal(fixedNow) &&
			u.SignupToken == "" &&
			u.SignupTokenExpires == nil
	})).Return(echoUser, nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e signup.ActivityEvent) bool {
		return e.EventType == signup.ActivityEventEmailVerified && e.UserID == user.ID.String()
	})).Return(nil).Once()

	resp := verify(t, newVerifyHandler(repo, sink), token)

	assert.True(t, resp.Verified)
	assert.False(t, resp.Expired)
	assert.False(t, resp.NotFound)
	require.NotNil(t, resp.User)
	assert.True(t, resp.User.EmailVerified)

	users.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestVerifyAccountTokenExpiringNowIsValid(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}

	token := uuid.NewString()

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).
		Return(pendingUser(token, fixedNow), nil).Once()
	users.On("ConsumeSignupToken", mock.Anything, token, mock.Anything).Return(echoUser, nil).Once()

	resp := verify(t, newVerifyHandler(repo, nil), token)
	assert.True(t, resp.Verified)
}

func TestVerifyAccountExpiredTokenIsCleared(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	sink := &MockActivitySink{}

	token := uuid.NewString()

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).
		Return(pendingUser(token, fixedNow.Add(-time.Second)), nil).Once()
	users.On("ConsumeSignupToken", mock.Anything, token, mock.MatchedBy(func(u *signup.User) bool {
		return !u.EmailVerified &&
			u.EmailVerifiedAt == nil &&
			u.SignupToken == "" &&
			u.SignupTokenExpires == nil
	})).Return(echoUser, nil).Once()
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e signup.ActivityEvent) bool {
		return e.EventType == signup.ActivityEventLinkExpired
	})).Return(nil).Once()

	resp := verify(t, newVerifyHandler(repo, sink), token)

	assert.True(t, resp.Expired)
	assert.False(t, resp.Verified)
	assert.False(t, resp.NotFound)

	users.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestVerifyAccountMalformedTokenSkipsStore(t *testing.T) {
	repo := &MockRepositoryManager{}

	for _, token := range []string{
		"",
		"abc",
		"123-456",
		"not-a-token",
		"0123456789abcdef01234",
		"0123456789ABCDEF012345",
		"xx0123456789abcdef012345",
		"12345678-1234-1234-1234-1234567890",
	} {
		resp := verify(t, newVerifyHandler(repo, nil), token)
		assert.True(t, resp.NotFound, token)
	}

	repo.AssertNotCalled(t, "Users")
}

func TestVerifyAccountUnknownToken(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}

	token := uuid.NewString()

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).
		Return(nil, repository.NewRecordNotFound()).Once()

	resp := verify(t, newVerifyHandler(repo, nil), token)
	assert.True(t, resp.NotFound)
	users.AssertNotCalled(t, "ConsumeSignupToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAccountLostRaceIsNotFound(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	sink := &MockActivitySink{}

	token := uuid.NewString()

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).
		Return(pendingUser(token, fixedNow.Add(time.Hour)), nil).Once()
	users.On("ConsumeSignupToken", mock.Anything, token, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	resp := verify(t, newVerifyHandler(repo, sink), token)
	assert.True(t, resp.NotFound)
	assert.False(t, resp.Verified)
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestVerifyAccountStrictStoreFailure(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}

	token := uuid.NewString()

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).
		Return(nil, errors.New("connection refused")).Once()

	err := newVerifyHandler(repo, nil).
		WithErrorPolicy(signup.StrictPolicy(testLogger{})).
		Execute(context.Background(), signup.VerifyAccountMessage{Token: token})

	require.Error(t, err)
	assert.False(t, signup.IsRejection(err))
}

func TestVerifyAccountStoreFailureAnswersAsStored(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		check   func(t *testing.T, resp *signup.VerifyAccountResponse)
	}{
		{
			name:    "valid link",
			expires: fixedNow.Add(time.Hour),
			check: func(t *testing.T, resp *signup.VerifyAccountResponse) {
				assert.True(t, resp.Verified)
				require.NotNil(t, resp.User)
				assert.True(t, resp.User.EmailVerified)
				assert.Empty(t, resp.User.SignupToken)
			},
		},
		{
			name:    "expired link",
			expires: fixedNow.Add(-time.Hour),
			check: func(t *testing.T, resp *signup.VerifyAccountResponse) {
				assert.True(t, resp.Expired)
				require.NotNil(t, resp.User)
				assert.False(t, resp.User.EmailVerified)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepositoryManager{}
			users := &MockUsers{}
			sink := &MockActivitySink{}

			token := uuid.NewString()

			repo.On("Users").Return(users)
			users.On("Find", mock.Anything, signup.FieldSignupToken, token).
				Return(pendingUser(token, tt.expires), nil).Once()
			users.On("ConsumeSignupToken", mock.Anything, token, mock.Anything).
				Return(nil, errors.New("db down")).Once()

			resp := verify(t, newVerifyHandler(repo, sink), token)

			assert.False(t, resp.NotFound)
			tt.check(t, resp)
			sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyAccountVerifiedRecordIsNotFound(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}

	token := uuid.NewString()
	stale := pendingUser(token, fixedNow.Add(time.Hour))
	stale.EmailVerified = true

	repo.On("Users").Return(users)
	users.On("Find", mock.Anything, signup.FieldSignupToken, token).Return(stale, nil).Once()

	resp := verify(t, newVerifyHandler(repo, nil), token)
	assert.True(t, resp.NotFound)
	users.AssertNotCalled(t, "ConsumeSignupToken", mock.Anything, mock.Anything, mock.Anything)
}
