package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/adapters/turso"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations on the release journal and usage ledger.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  intura migrate          # Run all pending migrations
  intura migrate 1        # Migrate to version 1
  intura migrate 0        # Rollback all migrations
  intura migrate --status`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

// Flags
var (
	migrateStatus bool
	migrateForce  int
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show the current version and pending migrations")
	migrateCmd.Flags().IntVar(&migrateForce, "force", -1, "Set the version and clear the dirty flag without running SQL")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	db, err := turso.Open(ctx, *dbCfg, turso.Options{Ping: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	m := migrate.New(db, migrate.WithOutput(out))

	if migrateForce >= 0 {
		if err := m.Force(ctx, migrateForce); err != nil {
			return err
		}
		fmt.Fprintf(out, "Forced version %d\n", migrateForce)
		return nil
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d\n", status.Current)
	if migrateStatus {
		fmt.Fprintf(out, "Latest version: %d\n", status.Latest)
		if status.Dirty {
			fmt.Fprintln(out, "Database is dirty")
		}
		for _, p := range status.Pending {
			fmt.Fprintf(out, "  pending %03d_%s\n", p.Version, p.Name)
		}
		return nil
	}

	if len(args) == 0 {
		_, err = m.Up(ctx)
		return err
	}

	target, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version number: %s", args[0])
	}
	switch {
	case target > status.Current:
		_, err = m.UpTo(ctx, target)
	case target < status.Current:
		_, err = m.DownTo(ctx, target)
	default:
		fmt.Fprintln(out, "Already at target version")
	}
	return err
}
