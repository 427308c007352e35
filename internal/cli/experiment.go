package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/internal/theme"
	"github.com/intura-ai/intura-go/pkg/intura"
	"github.com/intura-ai/intura-go/pkg/platform"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage dashboard experiments",
	Long:  `Create, list and inspect experiments on the Intura dashboard.`,
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Args:  cobra.NoArgs,
	RunE:  runExperimentList,
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new experiment",
	Long: `Create a new experiment with one or more treatments.

Treatments are given as name=provider:model, with an optional prompt read from
--prompt in the same order.

Examples:
  intura experiment create tone \
    --treatment formal=openai:gpt-4o --prompt "Answer formally." \
    --treatment casual=anthropic:claude-3-5-sonnet --prompt "Answer casually."
  intura experiment create tone --file experiment.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExperimentCreate,
}

var experimentDetailCmd = &cobra.Command{
	Use:   "detail <experiment-id>",
	Short: "Show an experiment and its treatments",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentDetail,
}

var experimentValidateCmd = &cobra.Command{
	Use:   "validate <experiment-id>",
	Short: "Check that an experiment exists and is usable",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentValidate,
}

// Flags
var (
	expDescription string
	expTreatments  []string
	expPrompts     []string
	expFile        string
)

func init() {
	rootCmd.AddCommand(experimentCmd)

	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentDetailCmd)
	experimentCmd.AddCommand(experimentValidateCmd)

	experimentCreateCmd.Flags().StringVarP(&expDescription, "description", "d", "", "Description of the experiment")
	experimentCreateCmd.Flags().StringArrayVarP(&expTreatments, "treatment", "t", nil, "Treatment as name=provider:model (repeatable)")
	experimentCreateCmd.Flags().StringArrayVarP(&expPrompts, "prompt", "p", nil, "System prompt of the matching treatment (repeatable)")
	experimentCreateCmd.Flags().StringVarP(&expFile, "file", "f", "", "Read the treatment list from a JSON file")
}

// parseTreatment parses name=provider:model.
func parseTreatment(s string) (intura.Treatment, error) {
	name, target, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return intura.Treatment{}, fmt.Errorf("invalid treatment %q: expected name=provider:model", s)
	}
	provider, model, ok := strings.Cut(target, ":")
	if !ok || provider == "" || model == "" {
		return intura.Treatment{}, fmt.Errorf("invalid treatment %q: expected name=provider:model", s)
	}
	return intura.Treatment{Name: strings.TrimSpace(name), ModelProvider: provider, ModelName: model}, nil
}

func buildExperiment(name string) (intura.Experiment, error) {
	exp := intura.Experiment{Name: name, Description: expDescription}

	if expFile != "" {
		data, err := os.ReadFile(expFile)
		if err != nil {
			return exp, fmt.Errorf("failed to read %s: %w", expFile, err)
		}
		if err := json.Unmarshal(data, &exp.Treatments); err != nil {
			return exp, fmt.Errorf("failed to parse %s: %w", expFile, err)
		}
	}

	if len(expPrompts) > len(expTreatments) {
		return exp, fmt.Errorf("got %d prompts for %d treatments", len(expPrompts), len(expTreatments))
	}
	for i, raw := range expTreatments {
		t, err := parseTreatment(raw)
		if err != nil {
			return exp, err
		}
		if i < len(expPrompts) {
			t.Prompt = expPrompts[i]
		}
		exp.Treatments = append(exp.Treatments, t)
	}
	return exp, platform.Validate(exp)
}

func newPlatform(cmd *cobra.Command) (*platform.Platform, error) {
	client, err := newDashboardClient(cmd.Context())
	if err != nil {
		return nil, err
	}
	return platform.New(client), nil
}

func runExperimentCreate(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(args[0])
	if err != nil {
		return err
	}
	p, err := newPlatform(cmd)
	if err != nil {
		return err
	}

	id, err := p.CreateExperiment(cmd.Context(), exp)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created experiment: %s\n", exp.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", id)
	fmt.Fprintf(cmd.OutOrStdout(), "  Treatments: %d\n", len(exp.Treatments))
	return nil
}

func runExperimentList(cmd *cobra.Command, args []string) error {
	p, err := newPlatform(cmd)
	if err != nil {
		return err
	}
	exps, err := p.Experiments(cmd.Context())
	if err != nil {
		return err
	}
	if len(exps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No experiments found")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tTREATMENTS\tDESCRIPTION")
	for _, e := range exps {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Name, len(e.Treatments), e.Description)
	}
	return w.Flush()
}

func runExperimentDetail(cmd *cobra.Command, args []string) error {
	p, err := newPlatform(cmd)
	if err != nil {
		return err
	}
	exp, err := p.Experiment(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if exp == nil {
		return fmt.Errorf("experiment %s not found", args[0])
	}

	st := theme.Default()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", st.Title.Render("Experiment:"), st.Highlighted.Render(exp.Name))
	fmt.Fprintf(out, "  ID: %s\n", exp.ID)
	if exp.Description != "" {
		fmt.Fprintf(out, "  Description: %s\n", exp.Description)
	}
	fmt.Fprintln(out)

	w := newTable(out)
	fmt.Fprintln(w, "TREATMENT\tPROVIDER\tMODEL\tPROMPT")
	for _, t := range exp.Treatments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.ModelProvider, t.ModelName, truncate(t.Prompt, 50))
	}
	return w.Flush()
}

func runExperimentValidate(cmd *cobra.Command, args []string) error {
	client, err := newDashboardClient(cmd.Context())
	if err != nil {
		return err
	}
	ok, err := client.ValidateExperiment(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("experiment %s is not valid", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Experiment %s is valid\n", args[0])
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
