package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/theme"
	"github.com/intura-ai/intura-go/pkg/experiment"
)

var chatCmd = &cobra.Command{
	Use:   "chat <experiment-id> <message>",
	Short: "Send a message to the model the dashboard selects",
	Long: `Build the chat model selected for this session and send it a message.

Input, output and token usage are reported to the dashboard and recorded in the
local usage ledger.

Examples:
  intura chat exp-123 "Summarise our refund policy"
  intura chat exp-123 "Hello" --feature tier=pro --feature age=31
  intura chat exp-123 "Hello" --max-models 3   # Ask every returned treatment`,
	Args: cobra.ExactArgs(2),
	RunE: runChat,
}

var experimentBuildCmd = &cobra.Command{
	Use:   "build <experiment-id>",
	Short: "Show the treatments the dashboard selects for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentBuild,
}

// Flags
var (
	chatFeatures  []string
	chatSession   string
	chatMaxModels int
	chatNoLedger  bool
)

func init() {
	rootCmd.AddCommand(chatCmd)
	experimentCmd.AddCommand(experimentBuildCmd)

	for _, c := range []*cobra.Command{chatCmd, experimentBuildCmd} {
		c.Flags().StringArrayVar(&chatFeatures, "feature", nil, "Routing feature as key=value (repeatable)")
		c.Flags().StringVar(&chatSession, "session", "", "Session id (a new one is generated when empty)")
		c.Flags().IntVar(&chatMaxModels, "max-models", 1, "Maximum number of models to build")
	}
	chatCmd.Flags().BoolVar(&chatNoLedger, "no-ledger", false, "Do not record usage in the local ledger")
}

// parseFeatures turns key=value pairs into a feature map. Values that are
// valid JSON keep their type, everything else is a string.
func parseFeatures(pairs []string) (map[string]any, error) {
	features := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid feature %q: expected key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			features[k] = decoded
		} else {
			features[k] = v
		}
	}
	return features, nil
}

func buildOptions() ([]experiment.BuildOption, error) {
	features, err := parseFeatures(chatFeatures)
	if err != nil {
		return nil, err
	}
	return []experiment.BuildOption{
		experiment.WithFeatures(features),
		experiment.WithSessionID(chatSession),
		experiment.WithMaxModels(chatMaxModels),
		experiment.WithVerbose(verbose),
	}, nil
}

func runExperimentBuild(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	client, err := newDashboardClient(cmd.Context())
	if err != nil {
		return err
	}

	results, err := experiment.New(client).Build(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}
	for _, r := range results {
		printResult(cmd.OutOrStdout(), r)
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	client, err := newDashboardClient(ctx)
	if err != nil {
		return err
	}

	expOpts := []experiment.Option{experiment.WithVerboseLogging(verbose)}
	if !chatNoLedger {
		app, err := NewAppContext(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to close app context", "error", err)
			}
		}()
		expOpts = append(expOpts, experiment.WithRecorder(app.Ledger))
	}

	results, err := experiment.New(client, expOpts...).Build(ctx, args[0], opts...)
	if err != nil {
		return err
	}

	st := theme.Default()
	for _, r := range results {
		answer, err := r.Chat(ctx, args[1])
		if err != nil {
			return fmt.Errorf("treatment %s failed: %w", r.Treatment.TreatmentName, err)
		}
		if len(results) > 1 {
			fmt.Fprintln(cmd.OutOrStdout(), st.Subtitle.Render(r.Treatment.TreatmentName+" ("+r.Treatment.ModelName()+")"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
	}
	return nil
}

func printResult(w io.Writer, r *experiment.Result) {
	st := theme.Default()
	fmt.Fprintf(w, "%s %s\n", st.Title.Render("Treatment:"), st.Highlighted.Render(r.Treatment.TreatmentName))
	fmt.Fprintf(w, "  ID:       %s\n", r.Treatment.TreatmentID)
	fmt.Fprintf(w, "  Provider: %s\n", r.Provider)
	fmt.Fprintf(w, "  Model:    %s\n", r.Treatment.ModelName())
	fmt.Fprintf(w, "  Session:  %s\n", r.Metadata["session_id"])
	if r.Treatment.Prompt != "" {
		fmt.Fprintf(w, "  Prompt:   %s\n", truncate(r.Treatment.Prompt, 60))
	}
}
