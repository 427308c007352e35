package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show or set the package version",
	Args:  cobra.NoArgs,
	RunE:  runVersionShow,
}

var versionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the version in the version file",
	Args:  cobra.NoArgs,
	RunE:  runVersionShow,
}

var versionSetCmd = &cobra.Command{
	Use:   "set [version]",
	Short: "Write a version to the version file",
	Long: `Write a version to the version file without committing.

Examples:
  intura version set 1.2.3
  intura version set --from-tag "$GITHUB_REF_NAME"   # used by CI for tag v1.2.3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVersionSet,
}

// Flags
var (
	versionFromTag string
	versionDryRun  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionShowCmd)
	versionCmd.AddCommand(versionSetCmd)

	versionSetCmd.Flags().StringVar(&versionFromTag, "from-tag", "", "Derive the version from a release tag such as v1.2.3")
	versionSetCmd.Flags().BoolVar(&versionDryRun, "dry-run", false, "Print the change without writing it")
}

func runVersionShow(cmd *cobra.Command, args []string) error {
	r, cleanup, err := newReleaser(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	v, err := r.CurrentVersion()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runVersionSet(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (versionFromTag != "") {
		return errors.New("provide either a version argument or --from-tag")
	}

	r, cleanup, err := newReleaser(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		_, err = r.SetVersion(args[0], versionDryRun)
	} else {
		_, err = r.SetFromTag(versionFromTag, versionDryRun)
	}
	return err
}
