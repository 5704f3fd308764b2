package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"project-health-backend/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the mutating routes",
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenSubject == "" {
		return fmt.Errorf("--subject is required")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", tokenTTL)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret (JWT_SECRET) is not set; the server accepts requests without tokens")
	}

	tok, err := auth.GenerateToken([]byte(cfg.Auth.Secret), tokenSubject, tokenTTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
