package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/buildinfo"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/logging"
)

var (
	verbose     bool
	releaseFile string
)

var rootCmd = &cobra.Command{
	Use:   "intura",
	Short: "Release tooling and SDK client for the Intura dashboard",
	Long: `intura versions, builds and publishes the intura-ai package, and talks to the
Intura experimentation dashboard.

Manage experiments, build the chat models selected for a session, and track
their token usage locally or through OpenTelemetry.`,
	Version:           buildinfo.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&releaseFile, "config", config.DefaultReleaseFile, "Release configuration file")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if verbose {
		logging.SetVerbose(true)
	}
	return nil
}
