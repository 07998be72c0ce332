package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/auth"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Generate(tokenUser)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to issue the token for")
	_ = tokenCmd.MarkFlagRequired("user")
}
