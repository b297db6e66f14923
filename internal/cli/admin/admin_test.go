package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuth) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuth) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuth) CreateAPIKeyWithToken(ctx context.Context, userID, name, token string) error {
	return m.Called(ctx, userID, name, token).Error(0)
}

var bootstrapToken = "stc_" + strings.Repeat("ab", 32)

func TestBootstrapInitialUser_CreatesUserAndKey(t *testing.T) {
	auth := new(MockAuth)
	auth.On("GetUserByName", mock.Anything, "alice").Return(nil, domain.ErrUserNotFound)
	auth.On("CreateUser", mock.Anything, "alice").Return(&domain.User{ID: "user-1", Name: "alice"}, nil)
	auth.On("CreateAPIKeyWithToken", mock.Anything, "user-1", "bootstrap", bootstrapToken).Return(nil)

	require.NoError(t, bootstrapInitialUser(context.Background(), "alice", bootstrapToken, auth))
	auth.AssertExpectations(t)
}

func TestBootstrapInitialUser_Idempotent(t *testing.T) {
	auth := new(MockAuth)
	auth.On("GetUserByName", mock.Anything, "alice").Return(&domain.User{ID: "user-1", Name: "alice"}, nil)
	auth.On("CreateAPIKeyWithToken", mock.Anything, "user-1", "bootstrap", bootstrapToken).Return(domain.ErrAPIKeyAlreadyExists)

	require.NoError(t, bootstrapInitialUser(context.Background(), "alice", bootstrapToken, auth))
	auth.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestBootstrapInitialUser_UserOnly(t *testing.T) {
	auth := new(MockAuth)
	auth.On("GetUserByName", mock.Anything, "alice").Return(&domain.User{ID: "user-1", Name: "alice"}, nil)

	require.NoError(t, bootstrapInitialUser(context.Background(), "alice", "", auth))
	auth.AssertNotCalled(t, "CreateAPIKeyWithToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBootstrapInitialUser_InvalidToken(t *testing.T) {
	auth := new(MockAuth)

	err := bootstrapInitialUser(context.Background(), "alice", "bad_nope", auth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stc_")
	auth.AssertNotCalled(t, "GetUserByName", mock.Anything, mock.Anything)
}

func TestBootstrapInitialUser_LookupFails(t *testing.T) {
	auth := new(MockAuth)
	auth.On("GetUserByName", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	err := bootstrapInitialUser(context.Background(), "alice", bootstrapToken, auth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check existing user")
}

func TestResolveUserID(t *testing.T) {
	const id = "6f1c1f8e-4a53-4d0f-9a57-0c3d2f1e9b10"
	auth := new(MockAuth)
	auth.On("GetUserByID", mock.Anything, id).Return(&domain.User{ID: id}, nil)
	auth.On("GetUserByName", mock.Anything, "alice").Return(&domain.User{ID: "user-1"}, nil)
	auth.On("GetUserByName", mock.Anything, "ghost").Return(nil, domain.ErrUserNotFound)

	got, err := resolveUserID(context.Background(), auth, id)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = resolveUserID(context.Background(), auth, "alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)

	_, err = resolveUserID(context.Background(), auth, "ghost")
	assert.EqualError(t, err, "user not found: ghost")
}
