package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/release"
	"github.com/intura-ai/intura-go/internal/theme"
	"github.com/intura-ai/intura-go/internal/util"
	"github.com/intura-ai/intura-go/internal/version"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Bump, build, upload and tag a new version",
	Long: `Run a full release: bump the version file, build the package, upload it to
the package index, then commit, tag and push.

Examples:
  intura release                  # Patch release
  intura release --minor
  intura release --version 2.0.0 --no-deploy
  intura release --dry-run        # Print every command without running it`,
	Args: cobra.NoArgs,
	RunE: runRelease,
}

var releaseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest recorded release",
	Args:  cobra.NoArgs,
	RunE:  runReleaseStatus,
}

var releaseResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Re-run the steps of the latest release that did not complete",
	Args:  cobra.NoArgs,
	RunE:  runReleaseResume,
}

var releaseHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded releases",
	Args:  cobra.NoArgs,
	RunE:  runReleaseHistory,
}

// Flags
var (
	releaseMajor    bool
	releaseMinor    bool
	releasePatch    bool
	releaseVersion  string
	releaseNoBuild  bool
	releaseNoDeploy bool
	releaseNoTag    bool
	releaseDryRun   bool
	historyLimit    int
)

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.AddCommand(releaseStatusCmd)
	releaseCmd.AddCommand(releaseResumeCmd)
	releaseCmd.AddCommand(releaseHistoryCmd)

	releaseCmd.Flags().BoolVar(&releaseMajor, "major", false, "Bump major version (X.0.0)")
	releaseCmd.Flags().BoolVar(&releaseMinor, "minor", false, "Bump minor version (0.X.0)")
	releaseCmd.Flags().BoolVar(&releasePatch, "patch", false, "Bump patch version (0.0.X) [default]")
	releaseCmd.Flags().StringVar(&releaseVersion, "version", "", "Set a specific version")
	releaseCmd.MarkFlagsMutuallyExclusive("major", "minor", "patch", "version")

	releaseCmd.Flags().BoolVar(&releaseNoBuild, "no-build", false, "Skip building the package")
	releaseCmd.Flags().BoolVar(&releaseNoDeploy, "no-deploy", false, "Skip uploading to the package index")
	releaseCmd.Flags().BoolVar(&releaseNoTag, "no-tag", false, "Skip creating the git tag")
	releaseCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Print commands without changing anything")

	releaseResumeCmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Print commands without changing anything")
	releaseHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of releases to show")
}

func bumpKind(major, minor bool) version.Kind {
	switch {
	case major:
		return version.Major
	case minor:
		return version.Minor
	default:
		return version.Patch
	}
}

// newReleaser loads the release configuration. The journal is attached when
// withJournal is set and the configuration enables it; the returned cleanup
// must always be called.
func newReleaser(ctx context.Context, cmd *cobra.Command, withJournal bool) (*release.Releaser, func(), error) {
	cfg, err := config.LoadRelease(releaseFile)
	if err != nil {
		return nil, nil, err
	}

	opts := []release.Option{release.WithOutput(cmd.OutOrStdout())}
	cleanup := func() {}
	if withJournal && cfg.JournalEnabled() {
		app, err := NewAppContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, release.WithJournal(app.Releases))
		cleanup = func() { _ = app.Close(ctx) }
	}

	dir, err := os.Getwd()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	runner := release.NewExecRunner(dir)
	runner.Stdout = cmd.OutOrStdout()
	runner.Stderr = cmd.ErrOrStderr()
	return release.New(*cfg, runner, opts...), cleanup, nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, cleanup, err := newReleaser(ctx, cmd, !releaseDryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	rel, err := r.Release(ctx, release.Options{
		Kind:     bumpKind(releaseMajor, releaseMinor),
		Version:  releaseVersion,
		NoBuild:  releaseNoBuild,
		NoUpload: releaseNoDeploy,
		NoTag:    releaseNoTag,
		DryRun:   releaseDryRun,
	})
	if err != nil {
		var stepErr *release.StepError
		if errors.As(err, &stepErr) && rel != nil && !releaseDryRun {
			fmt.Fprintf(cmd.ErrOrStderr(), "Release %s stopped at %s. Fix the problem and run 'intura release resume'.\n",
				rel.Version, stepErr.Step)
		}
		return err
	}
	return nil
}

func runReleaseStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, cleanup, err := newReleaser(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	rel, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if rel == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No releases recorded")
		return nil
	}
	printRelease(cmd.OutOrStdout(), rel)
	return nil
}

func runReleaseResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, cleanup, err := newReleaser(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = r.Resume(ctx, releaseDryRun)
	if errors.Is(err, release.ErrNothingToResume) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resume")
		return nil
	}
	return err
}

func runReleaseHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, cleanup, err := newReleaser(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := r.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No releases recorded")
		return nil
	}

	st := theme.Default()
	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "VERSION\tPREVIOUS\tSTATUS\tSTARTED\tID")
	for _, rel := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rel.Version, rel.PreviousVersion, st.Status(rel.Status),
			util.FormatTime(rel.StartedAt), rel.ID)
	}
	return w.Flush()
}
