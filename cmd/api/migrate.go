package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"project-health-backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, cfg.Database.Driver); err != nil {
		return err
	}

	fmt.Println(styleSuccess.Render(fmt.Sprintf("✓ schema up to date (%s)", cfg.Database.Driver)))
	return nil
}
