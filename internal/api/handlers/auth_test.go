package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	args := m.Called(ctx, userID, name)
	return args.String(0), args.Error(1)
}

func TestAuthHandler_CreateUser_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateUser", mock.Anything, "ada").Return(&domain.User{
		ID:        "user-123",
		Name:      "ada",
		CreatedAt: time.Now().UTC(),
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{"name":"ada"}`)))
	w := httptest.NewRecorder()

	handler.CreateUser(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "user-123", data["id"])
	assert.Equal(t, "ada", data["name"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateUser_BadRequests(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectedError string
	}{
		{"missing name", `{}`, "name is required"},
		{"blank name", `{"name":"   "}`, "name is required"},
		{"invalid json", `{invalid`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockAuthService)
			req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			NewAuthHandler(mockSvc).CreateUser(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
			mockSvc.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthHandler_CreateUser_Conflict(t *testing.T) {
	mockSvc := new(MockAuthService)
	mockSvc.On("CreateUser", mock.Anything, "ada").Return(nil, domain.ErrUserAlreadyExists)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{"name":"ada"}`)))
	w := httptest.NewRecorder()

	NewAuthHandler(mockSvc).CreateUser(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "user already exists")
}

func TestAuthHandler_CreateAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	mockSvc.On("CreateAPIKey", mock.Anything, "user-123", "laptop").Return("stc_token", nil)

	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(`{"user_id":"user-123","name":"laptop"}`)))
	w := httptest.NewRecorder()

	NewAuthHandler(mockSvc).CreateAPIKey(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "stc_token", data["token"])
	assert.Equal(t, "laptop", data["name"])
}

func TestAuthHandler_CreateAPIKey_MissingFields(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectedError string
	}{
		{"missing user", `{"name":"laptop"}`, "user_id is required"},
		{"missing name", `{"user_id":"user-123"}`, "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockAuthService)
			req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			NewAuthHandler(mockSvc).CreateAPIKey(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}

func TestAuthHandler_CreateAPIKey_UserNotFound(t *testing.T) {
	mockSvc := new(MockAuthService)
	mockSvc.On("CreateAPIKey", mock.Anything, "missing", "laptop").Return("", domain.ErrUserNotFound)

	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(`{"user_id":"missing","name":"laptop"}`)))
	w := httptest.NewRecorder()

	NewAuthHandler(mockSvc).CreateAPIKey(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// decodeData unwraps the {"data": ...} envelope of a success response.
func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}
