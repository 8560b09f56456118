package signup_test

import (
	"context"

	signup "github.com/goliatone/go-signup"
	"github.com/stretchr/testify/mock"
)

// MockRepositoryManager implements signup.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) Users() signup.Users {
	args := m.Called()
	return args.Get(0).(signup.Users)
}

// MockUsers implements signup.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Find(ctx context.Context, field signup.LookupField, value string) (*signup.User, error) {
	args := m.Called(ctx, field, value)
	user, _ := args.Get(0).(*signup.User)
	return user, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *signup.User) (*signup.User, error) {
	args := m.Called(ctx, user)
	return userResult(args.Get(0), user), args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, user *signup.User) (*signup.User, error) {
	args := m.Called(ctx, user)
	return userResult(args.Get(0), user), args.Error(1)
}

func (m *MockUsers) ConsumeSignupToken(ctx context.Context, token string, next *signup.User) (*signup.User, error) {
	args := m.Called(ctx, token, next)
	return userResult(args.Get(0), next), args.Error(1)
}

// userResult lets expectations echo the argument back with
// Return(echoUser, nil).
func userResult(ret any, in *signup.User) *signup.User {
	if fn, ok := ret.(func(*signup.User) *signup.User); ok {
		return fn(in)
	}
	out, _ := ret.(*signup.User)
	return out
}

func echoUser(u *signup.User) *signup.User { return u }

// MockMailer implements signup.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, notification signup.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

// MockActivitySink implements signup.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event signup.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockHasher implements signup.PasswordHasher without bcrypt cost
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) HashPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// plainHasher stores passwords with a fixed prefix, fast enough for flow tests
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}
