/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/classroll/apiserver/config"
	"github.com/classroll/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// adminCmd groups administrator maintenance commands.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var (
	adminEmail string
	adminName  string
)

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or promote an administrator",
	Long: `Creates an approved administrator, or promotes the existing account with
the same email. The password is read from ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			return errors.New("ADMIN_PASSWORD is required")
		}

		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		app, err := server.NewApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = app.Close()
		}()

		return app.EnsureAdmin(cmd.Context(), adminEmail, adminName, password)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email")
	adminCreateCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	_ = adminCreateCmd.MarkFlagRequired("email")
}
