package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taskflow/storage"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the settings table and events queue",
	Args:  cobra.NoArgs,
	RunE:  runProvision,
}

func init() {
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	if cfg.StorageConn == "" {
		return errors.New("storage_connection_string is not configured")
	}
	if err := storage.Provision(cmd.Context(), cfg.StorageConn, cfg.SettingsTable, cfg.EventsQueue); err != nil {
		return fmt.Errorf("provision: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "storage ready")
	return nil
}
