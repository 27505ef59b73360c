package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gstdocai/backend/internal/ledger"
)

func newUpgradeCmd(withBackend func(context.Context, func(*backend) error) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Plan upgrades",
	}

	var account, plan, paymentID string
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply a verified payment's plan change; replaying a processed payment id is a no-op",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(account)
			if err != nil {
				return fmt.Errorf("invalid --account: %w", err)
			}
			p, err := ledger.ParsePlan(plan)
			if err != nil {
				return err
			}
			if paymentID == "" {
				return errors.New("--payment-id must not be empty")
			}
			return withBackend(cmd.Context(), func(b *backend) error {
				applied, err := b.upgrades.ApplyUpgrade(cmd.Context(), id, p, paymentID)
				if err != nil {
					return err
				}
				if applied {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %s to %s\n", p, id)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "payment %s already processed\n", paymentID)
				}
				return nil
			})
		},
	}
	apply.Flags().StringVar(&account, "account", "", "account id")
	apply.Flags().StringVar(&plan, "plan", "", "target plan (free, pro, firm)")
	apply.Flags().StringVar(&paymentID, "payment-id", "", "gateway payment id")
	for _, f := range []string{"account", "plan", "payment-id"} {
		_ = apply.MarkFlagRequired(f)
	}

	cmd.AddCommand(apply)
	return cmd
}
