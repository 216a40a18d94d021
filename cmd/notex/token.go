package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blancocp/notex/internal/auth"
)

func newTokenCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			provider, err := auth.NewProvider(cfg.Auth)
			if err != nil {
				return fmt.Errorf("auth.NewProvider() > %w", err)
			}

			token, err := provider.IssueToken(userID)
			if err != nil {
				return fmt.Errorf("provider.IssueToken() > %w", err)
			}

			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to issue the token for")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
