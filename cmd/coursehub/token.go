package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/service"
)

func newTokenCommand() *cobra.Command {
	var identity service.Identity
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			identity.Role = models.UserRole(strings.ToUpper(role))
			auth := service.NewAuthService(a.logger, service.AuthConfig{
				AccessTokenSecret: a.cfg.JWT.Secret,
				AccessTokenExpiry: a.cfg.JWT.Expiration,
				Issuer:            a.cfg.JWT.Issuer,
			})
			token, expiresAt, err := auth.IssueToken(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UserID, "user-id", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "ADMIN, INSTRUCTOR or STUDENT")
	cmd.Flags().StringVar(&identity.FullName, "name", "", "display name")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
