package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/studycompanion/internal/config"
	"github.com/cloo-solutions/studycompanion/internal/database"
	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/repository"
	"github.com/cloo-solutions/studycompanion/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 2, ApplicationName: "studyd-admin"})
}

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	return service.NewAuthService(
		repository.NewUserRepository(pool),
		repository.NewAPIKeyRepository(pool),
		&service.DefaultUUIDGenerator{},
	)
}

type userLookup interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
}

// resolveUserID accepts either a user ID or a user name.
func resolveUserID(ctx context.Context, users userLookup, ref string) (string, error) {
	var (
		user *domain.User
		err  error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		user, err = users.GetUserByID(ctx, ref)
	} else {
		user, err = users.GetUserByName(ctx, ref)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", fmt.Errorf("user not found: %s", ref)
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
