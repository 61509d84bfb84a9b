package auth_test

import (
	"context"
	"time"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/stretchr/testify/mock"
)

// MockDirectory implements auth.AccountDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) principal(args mock.Arguments) (*auth.Principal, error) {
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

func (m *MockDirectory) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, email))
}

func (m *MockDirectory) FindByID(ctx context.Context, id string) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, id))
}

func (m *MockDirectory) Create(ctx context.Context, p *auth.Principal) (*auth.Principal, error) {
	args := m.Called(ctx, p)
	if fn, ok := args.Get(0).(func(*auth.Principal) *auth.Principal); ok {
		return fn(p), args.Error(1)
	}
	return m.principal(args)
}

func (m *MockDirectory) Save(ctx context.Context, p *auth.Principal, columns ...string) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, p, columns))
}

func (m *MockDirectory) List(ctx context.Context, limit, offset int) ([]*auth.Principal, int, error) {
	args := m.Called(ctx, limit, offset)
	list, _ := args.Get(0).([]*auth.Principal)
	return list, args.Int(1), args.Error(2)
}

func (m *MockDirectory) ClaimActivationToken(ctx context.Context, token string) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, token))
}

func (m *MockDirectory) SetPasswordResetToken(ctx context.Context, email, token string, at time.Time) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, email, token, at))
}

func (m *MockDirectory) FindByPasswordResetToken(ctx context.Context, token string, notBefore time.Time) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, token, notBefore))
}

func (m *MockDirectory) ClaimPasswordResetToken(ctx context.Context, token, hash string, notBefore time.Time) (*auth.Principal, error) {
	return m.principal(m.Called(ctx, token, hash, notBefore))
}

func (m *MockDirectory) TrackLoginAttempt(ctx context.Context, p *auth.Principal, success bool, at time.Time) error {
	return m.Called(ctx, p, success, at).Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockNotifier implements auth.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendActivation(ctx context.Context, p *auth.Principal, link string) error {
	return m.Called(ctx, p, link).Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, p *auth.Principal, link string) error {
	return m.Called(ctx, p, link).Error(0)
}

// recordingSink keeps events in memory
type recordingSink struct {
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []auth.ActivityEventType {
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
