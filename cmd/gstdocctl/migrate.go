package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(databaseURL func() (string, error), migrate migrator) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrate(u); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	})
	return cmd
}
