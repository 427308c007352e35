package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/adapters/prometheus"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/ports"
	"github.com/intura-ai/intura-go/internal/util"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarise chat model usage from the local ledger",
	Long: `Summarise token usage and latency per treatment.

Examples:
  intura usage
  intura usage --experiment exp-123 --period week`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

var usagePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old usage entries",
	Args:  cobra.NoArgs,
	RunE:  runUsagePrune,
}

var usageLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Show usage over a rolling window from Prometheus",
	Long: `Query Prometheus for the usage metrics exported over OpenTelemetry.

Requires INTURA_PROMETHEUS_ENABLED=true and INTURA_PROMETHEUS_URL.`,
	Args: cobra.NoArgs,
	RunE: runUsageLive,
}

// Flags
var (
	usageExperiment string
	usagePeriod     string
	usageOlderThan  int
	usageHours      int
)

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usagePruneCmd)
	usageCmd.AddCommand(usageLiveCmd)

	usageCmd.Flags().StringVarP(&usageExperiment, "experiment", "e", "", "Only this experiment")
	usageCmd.Flags().StringVarP(&usagePeriod, "period", "p", "all", "today, week, month or all")
	usagePruneCmd.Flags().IntVar(&usageOlderThan, "older-than", 30, "Delete entries older than this many days")
	usageLiveCmd.Flags().StringVarP(&usageExperiment, "experiment", "e", "", "Only this experiment")
	usageLiveCmd.Flags().IntVar(&usageHours, "hours", 24, "Rolling window in hours")
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	summary, err := app.Usage.Summarize(ctx, usageExperiment, util.SinceForPeriod(usagePeriod, time.Now()))
	if err != nil {
		return err
	}
	if len(summary) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No usage recorded")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "EXPERIMENT\tTREATMENT\tMODEL\tCALLS\tINPUT\tOUTPUT\tTOTAL\tAVG LATENCY")
	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ExperimentID, s.TreatmentName, s.ModelName, s.Invocations,
			util.FormatTokens(s.InputTokens), util.FormatTokens(s.OutputTokens), util.FormatTokens(s.TotalTokens),
			util.FormatDuration(s.AverageLatency()))
	}
	return w.Flush()
}

func runUsagePrune(cmd *cobra.Command, args []string) error {
	if usageOlderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}
	ctx := cmd.Context()
	app, err := NewAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	n, err := app.Usage.DeleteBefore(ctx, time.Now().AddDate(0, 0, -usageOlderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d usage entries\n", n)
	return nil
}

func newUsageWindowReader() (ports.UsageWindowReader, error) {
	cfg, err := config.LoadPrometheus()
	if err != nil {
		return nil, fmt.Errorf("failed to load Prometheus config: %w", err)
	}
	c, err := prometheus.NewClient(*cfg)
	if errors.Is(err, prometheus.ErrDisabled) {
		return prometheus.NewNoOpClient(), nil
	}
	return c, err
}

func runUsageLive(cmd *cobra.Command, args []string) error {
	reader, err := newUsageWindowReader()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if !reader.IsAvailable(ctx) {
		return errors.New("prometheus is not available; set INTURA_PROMETHEUS_ENABLED and INTURA_PROMETHEUS_URL")
	}

	w, err := reader.RollingWindowUsage(ctx, usageExperiment, usageHours)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Last %dh\n", w.WindowHours)
	fmt.Fprintf(out, "  Invocations:   %.0f\n", w.Invocations)
	fmt.Fprintf(out, "  Input tokens:  %s\n", util.FormatTokens(int64(w.InputTokens)))
	fmt.Fprintf(out, "  Output tokens: %s\n", util.FormatTokens(int64(w.OutputTokens)))
	fmt.Fprintf(out, "  Total tokens:  %s\n", util.FormatTokens(int64(w.TotalTokens())))
	return nil
}
