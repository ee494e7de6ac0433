package credentials_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockLogger implements credentials.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MockIdentity implements credentials.Identity for testing
type MockIdentity struct {
	IDValue       string
	UsernameValue string
	EmailValue    string
}

func (m *MockIdentity) ID() string       { return m.IDValue }
func (m *MockIdentity) Username() string { return m.UsernameValue }
func (m *MockIdentity) Email() string    { return m.EmailValue }

// MockIdentityProvider implements credentials.IdentityProvider for testing
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) GetUserPolicy(ctx context.Context, identityID string) (*credentials.UserPolicy, error) {
	args := m.Called(ctx, identityID)
	if policy, ok := args.Get(0).(*credentials.UserPolicy); ok {
		return policy, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) SetPassword(ctx context.Context, identityID, newPassword string) error {
	args := m.Called(ctx, identityID, newPassword)
	return args.Error(0)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, username, password string) (credentials.Identity, error) {
	args := m.Called(ctx, username, password)
	if identity, ok := args.Get(0).(credentials.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, username, email, password string) (credentials.Identity, error) {
	args := m.Called(ctx, username, email, password)
	if identity, ok := args.Get(0).(credentials.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// capturingSink records activity events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []credentials.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt credentials.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) byType(t credentials.ActivityEventType) []credentials.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []credentials.ActivityEvent
	for _, evt := range c.events {
		if evt.EventType == t {
			out = append(out, evt)
		}
	}
	return out
}

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	models := []any{
		(*credentials.Invite)(nil),
		(*credentials.InviteUsage)(nil),
		(*credentials.PasswordReset)(nil),
		(*credentials.AuthPolicy)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestRepoManager(t *testing.T) credentials.RepositoryManager {
	t.Helper()
	repo := credentials.NewRepositoryManager(newTestDB(t))
	repo.MustValidate()
	return repo
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
