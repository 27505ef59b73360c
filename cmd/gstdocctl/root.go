package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gstdocai/backend/internal/database"
	"github.com/gstdocai/backend/internal/ledger"
	"github.com/gstdocai/backend/internal/observability"
	"github.com/gstdocai/backend/internal/repository"
	"github.com/gstdocai/backend/internal/services"
)

const databaseURLKey = "DATABASE_URL"

var errMissingDatabaseURL = errors.New("database url is required (--database-url or DATABASE_URL)")

type creditChecker interface {
	CheckAndReset(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error)
}

type upgradeApplier interface {
	ApplyUpgrade(ctx context.Context, accountID uuid.UUID, plan ledger.Plan, paymentID string) (bool, error)
}

// backend is what the subcommands operate on once connected.
type backend struct {
	meter    creditChecker
	upgrades upgradeApplier
	close    func()
}

type opener func(ctx context.Context, databaseURL string) (*backend, error)

type migrator func(databaseURL string) error

func newRootCmd(open opener, migrate migrator) *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "gstdocctl",
		Short:         "Operator tools for the GST letter backend",
		Long:          "gstdocctl applies schema migrations, inspects credit balances, and replays plan upgrades for manual reconciliation.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string (default $DATABASE_URL)")
	_ = v.BindPFlag(databaseURLKey, rootCmd.PersistentFlags().Lookup("database-url"))

	databaseURL := func() (string, error) {
		u := v.GetString(databaseURLKey)
		if u == "" {
			return "", errMissingDatabaseURL
		}
		return u, nil
	}
	withBackend := func(ctx context.Context, fn func(*backend) error) error {
		u, err := databaseURL()
		if err != nil {
			return err
		}
		b, err := open(ctx, u)
		if err != nil {
			return err
		}
		defer b.close()
		return fn(b)
	}

	rootCmd.AddCommand(
		newMigrateCmd(databaseURL, migrate),
		newCreditsCmd(withBackend),
		newUpgradeCmd(withBackend),
	)
	return rootCmd
}

// connect wires the same meter and applier the API server uses.
func connect(ctx context.Context, databaseURL string) (*backend, error) {
	pool, err := database.NewPool(ctx, databaseURL, 2)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	metrics := observability.NewNopMetrics()
	repo := ledger.NewRepository(pool)
	return &backend{
		meter:    services.NewCreditMeter(repo, logger, metrics),
		upgrades: services.NewUpgradeApplier(pool, repo, repository.NewPaymentRepo(pool), logger, metrics),
		close:    pool.Close,
	}, nil
}

func runMigrations(databaseURL string) error {
	return database.MigrateUp(databaseURL)
}
