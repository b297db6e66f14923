package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list users",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new user",
		Long:  "Create a new user and optionally issue a first API key",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().String("key-name", "", "Also create an API key with this name")

	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")
	keyName, _ := cmd.Flags().GetString("key-name")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	authSvc := newAuthService(pool)

	user, err := authSvc.CreateUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	var token string
	if keyName != "" {
		token, err = authSvc.CreateAPIKey(ctx, user.ID, keyName)
		if err != nil {
			return fmt.Errorf("user %s created but API key failed: %w", user.ID, err)
		}
	}

	if outputFormat == "json" {
		data := map[string]any{
			"id":         user.ID,
			"name":       user.Name,
			"created_at": user.CreatedAt,
		}
		if token != "" {
			data["token"] = token
		}
		return printJSON(data)
	}

	fmt.Printf("User created: %s (%s)\n", user.Name, user.ID)
	if token != "" {
		fmt.Printf("Token: %s\n", token)
		fmt.Println("\nSave this token now. You won't be able to see it again!")
	}
	return nil
}

func UserListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE:  runUserList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	users, err := newAuthService(pool).ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]any, len(users))
		for i, u := range users {
			data[i] = map[string]any{
				"id":         u.ID,
				"name":       u.Name,
				"created_at": u.CreatedAt,
			}
		}
		return printJSON(map[string]any{"items": data})
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}
	fmt.Println("Users:")
	for _, u := range users {
		fmt.Printf("  %s: %s (created: %s)\n", u.ID, u.Name, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
