package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/version"
)

var bumpCmd = &cobra.Command{
	Use:   "bump [major|minor|patch]",
	Short: "Bump the version file and commit it",
	Long: `Bump the version file and commit the change without building or tagging.

Examples:
  intura bump            # Patch bump
  intura bump minor
  intura bump --version 1.0.0`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(version.Major), string(version.Minor), string(version.Patch)},
	RunE:      runBump,
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Create and push the git tag for the current version",
	Args:  cobra.NoArgs,
	RunE:  runTag,
}

// Flags
var (
	bumpVersion string
	bumpDryRun  bool
	tagDryRun   bool
)

func init() {
	rootCmd.AddCommand(bumpCmd)
	rootCmd.AddCommand(tagCmd)

	bumpCmd.Flags().StringVar(&bumpVersion, "version", "", "Set a specific version")
	bumpCmd.Flags().BoolVar(&bumpDryRun, "dry-run", false, "Print commands without changing anything")
	tagCmd.Flags().BoolVar(&tagDryRun, "dry-run", false, "Print commands without changing anything")
}

func runBump(cmd *cobra.Command, args []string) error {
	var kindArg string
	if len(args) == 1 {
		kindArg = args[0]
	}
	kind, err := version.ParseKind(kindArg)
	if err != nil {
		return err
	}

	r, cleanup, err := newReleaser(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	next, err := r.Bump(cmd.Context(), kind, bumpVersion, bumpDryRun)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Version bumped to %s\n", next)
	return nil
}

func runTag(cmd *cobra.Command, args []string) error {
	r, cleanup, err := newReleaser(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = r.Tag(cmd.Context(), tagDryRun)
	return err
}
