package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

const testToken = "stc_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestAPIKeyAuth_Success(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("user-789", nil)

	var capturedUserID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-789", capturedUserID)
	mockValidator.AssertExpectations(t)
}

func TestAPIKeyAuth_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		expectedError string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid authorization format"},
		{"empty bearer", "Bearer   ", "invalid authorization format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockValidator := new(MockAuthValidator)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedError)
			mockValidator.AssertNotCalled(t, "ValidateAPIKey", mock.Anything, mock.Anything)
		})
	}
}

func TestAPIKeyAuth_ValidationFails(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("", domain.ErrAPIKeyRevoked)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
}

func TestAPIKeyAuth_IgnoresClientUserHeader(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, testToken).Return("user-1", nil)

	var headerSeen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerSeen = r.Header.Get("X-User-ID")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-User-ID", "someone-else")

	APIKeyAuth(mockValidator)(handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", headerSeen)
}

func TestGetUserID(t *testing.T) {
	assert.Equal(t, "user-123", GetUserID(WithUserID(context.Background(), "user-123")))
	assert.Empty(t, GetUserID(context.Background()))
}
