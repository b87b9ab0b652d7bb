package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/repository"
	"github.com/weiawesome/hybrid-relay/pkg/database"
	"github.com/weiawesome/hybrid-relay/pkg/jwt"
)

func newTokenCmd() *cobra.Command {
	var (
		userID   string
		username string
		email    string
		create   bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Long: `Issue an HS256 access token signed with the configured secret.

With --create the user is created first when it does not exist yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" && !create {
				return errors.New("--user-id is required unless --create is set")
			}
			if create && username == "" {
				return errors.New("--username is required with --create")
			}

			cfg, err := loadConfig("")
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			ctx := cmd.Context()
			users := repository.NewGormUserRepository(db)

			var user *domain.User
			if userID != "" {
				user, err = users.GetByID(ctx, userID)
				if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
					return err
				}
			}
			if user == nil {
				if !create {
					return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
				}
				user = &domain.User{ID: userID, Username: username, Email: email}
				if err := users.Create(ctx, user); err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
			}

			tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, exp, err := tokens.GenerateToken(user.ID, user.Username)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user_id:    %s\n", user.ID)
			fmt.Fprintf(out, "expires_at: %s\n", exp.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Fprintf(out, "token:      %s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "user the token is issued for")
	cmd.Flags().StringVar(&username, "username", "", "username when creating the user")
	cmd.Flags().StringVar(&email, "email", "", "email when creating the user")
	cmd.Flags().BoolVar(&create, "create", false, "create the user if it does not exist")
	return cmd
}
