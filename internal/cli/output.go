package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/theme"
	"github.com/intura-ai/intura-go/internal/util"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func errorStyle(s string) string {
	return theme.Default().Error.Render("Error: " + s)
}

func printRelease(w io.Writer, rel *domain.Release) {
	st := theme.Default()
	fmt.Fprintf(w, "%s %s\n", st.Title.Render("Release"), st.Highlighted.Render(rel.Version))
	fmt.Fprintf(w, "  ID:       %s\n", rel.ID)
	fmt.Fprintf(w, "  Previous: %s\n", rel.PreviousVersion)
	fmt.Fprintf(w, "  Status:   %s\n", st.Status(rel.Status))
	fmt.Fprintf(w, "  Started:  %s\n", util.FormatTime(rel.StartedAt))
	if rel.FinishedAt != nil {
		fmt.Fprintf(w, "  Finished: %s\n", util.FormatTime(*rel.FinishedAt))
	}
	fmt.Fprintln(w)
	for _, s := range rel.Steps {
		line := fmt.Sprintf("  %-7s %s", s.Name, st.Status(s.Status))
		if s.Error != nil {
			line += " " + st.Muted.Render(*s.Error)
		}
		fmt.Fprintln(w, line)
	}
	if rel.Resumable() && rel.Status == domain.StatusFailed {
		fmt.Fprintf(w, "\nRun %s to retry: %s\n",
			st.Bold.Render("intura release resume"), strings.Join(rel.Incomplete(), ", "))
	}
}
