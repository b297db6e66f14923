package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/domain"
)

const apiKeyPrefix = "stc_"

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByName(ctx context.Context, name string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id string) (*domain.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*domain.APIKey, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

type AuthService struct {
	userRepo UserRepository
	keyRepo  APIKeyRepository
	uuidGen  UUIDGenerator
}

func NewAuthService(userRepo UserRepository, keyRepo APIKeyRepository, uuidGen UUIDGenerator) *AuthService {
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &AuthService{
		userRepo: userRepo,
		keyRepo:  keyRepo,
		uuidGen:  uuidGen,
	}
}

func (s *AuthService) CreateUser(ctx context.Context, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user name is required")
	}

	user := domain.NewUser(s.uuidGen.NewString(), name, time.Now().UTC())
	if err := domain.ValidateUser(user); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *AuthService) GetUserByName(ctx context.Context, name string) (*domain.User, error) {
	return s.userRepo.GetByName(ctx, name)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}

// CreateAPIKey issues a new token for the user. The plaintext is only returned here.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	token, err := generateAPIToken()
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate API key", err)
	}

	if err := s.storeKey(ctx, userID, name, token); err != nil {
		return "", err
	}
	return token, nil
}

// CreateAPIKeyWithToken registers a caller-supplied token, used for bootstrap keys.
func (s *AuthService) CreateAPIKeyWithToken(ctx context.Context, userID, name, token string) error {
	if !IsValidAPIToken(token) {
		return domain.NewDomainError(domain.ErrCodeValidation, "invalid API key format (expected stc_<64 hex chars>)")
	}
	return s.storeKey(ctx, userID, name, token)
}

func (s *AuthService) storeKey(ctx context.Context, userID, name, token string) error {
	if userID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}
	if name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key name is required")
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}

	key := domain.NewAPIKey(s.uuidGen.NewString(), userID, name, hashToken(token), time.Now().UTC())
	if err := domain.ValidateAPIKey(key); err != nil {
		return err
	}

	return s.keyRepo.Create(ctx, key)
}

// ValidateAPIKey resolves a bearer token to the owning user ID.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if !IsValidAPIToken(token) {
		return "", domain.ErrInvalidAPIKey
	}

	key, err := s.keyRepo.GetByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return "", domain.ErrInvalidAPIKey
		}
		return "", err
	}

	if key.IsRevoked() {
		return "", domain.ErrAPIKeyRevoked
	}

	return key.UserID, nil
}

func (s *AuthService) RevokeAPIKey(ctx context.Context, keyID string) error {
	if keyID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "API key ID is required")
	}

	return s.keyRepo.Revoke(ctx, keyID)
}

func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	if userID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user ID is required")
	}

	return s.keyRepo.GetByUserID(ctx, userID)
}

func generateAPIToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func IsValidAPIToken(token string) bool {
	hexPart, ok := strings.CutPrefix(token, apiKeyPrefix)
	if !ok || len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}
