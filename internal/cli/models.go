package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intura-ai/intura-go/pkg/experiment"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the dashboard",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var modelsLocal bool

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsLocal, "providers", false, "List the providers this client can build instead")
}

func runModels(cmd *cobra.Command, args []string) error {
	if modelsLocal {
		for _, p := range experiment.DefaultRegistry().Providers() {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	}

	p, err := newPlatform(cmd)
	if err != nil {
		return err
	}
	models, err := p.Models(cmd.Context())
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No models found")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "PROVIDER\tMODEL\tNAME")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Provider, m.Name, m.Label)
	}
	return w.Flush()
}
