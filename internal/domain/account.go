package domain

import (
	"fmt"
	"time"
)

// User owns documents, conversations and API keys.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// APIKey authenticates requests on behalf of one user.
type APIKey struct {
	ID        string
	UserID    string
	Name      string
	KeyHash   string // sha256 of the plaintext token
	CreatedAt time.Time
	RevokedAt *time.Time
}

func NewUser(id, name string, createdAt time.Time) *User {
	return &User{ID: id, Name: name, CreatedAt: createdAt}
}

func NewAPIKey(id, userID, name, keyHash string, createdAt time.Time) *APIKey {
	return &APIKey{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyHash:   keyHash,
		CreatedAt: createdAt,
	}
}

// IsRevoked returns true if the API key has been revoked
func (a *APIKey) IsRevoked() bool {
	return a.RevokedAt != nil
}

// ValidateUser validates a User instance
func ValidateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}
	return requireFields("user", field{"ID", u.ID}, field{"Name", u.Name})
}

// ValidateAPIKey validates an APIKey instance
func ValidateAPIKey(a *APIKey) error {
	if a == nil {
		return fmt.Errorf("api key cannot be nil")
	}
	return requireFields("api key",
		field{"ID", a.ID},
		field{"UserID", a.UserID},
		field{"Name", a.Name},
		field{"KeyHash", a.KeyHash},
	)
}

type field struct {
	name  string
	value string
}

func requireFields(entity string, fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%s %s is required", entity, f.name)
		}
	}
	return nil
}
