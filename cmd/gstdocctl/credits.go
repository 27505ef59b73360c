package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCreditsCmd(withBackend func(context.Context, func(*backend) error) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect credit balances",
	}

	var account string
	check := &cobra.Command{
		Use:   "check",
		Short: "Show an account's balance, applying the monthly reset if it is due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(account)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			return withBackend(cmd.Context(), func(b *backend) error {
				acc, err := b.meter.CheckAndReset(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%s\n",
					acc.ID, acc.Plan, acc.Credits, acc.CreditsResetAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	check.Flags().StringVar(&account, "account", "", "account id")
	_ = check.MarkFlagRequired("account")

	cmd.AddCommand(check)
	return cmd
}
