// internal/commands/prompts.go
package llmeval

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/util"
)

// promptsCmd lists the prompt catalog.
var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List eval prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(GetConfig())
		if err != nil {
			return err
		}
		selected := catalog.Select(filterFromFlags(cmd))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\nEval prompts (%d):\n", len(selected))
		t := table.New().
			Border(lipgloss.HiddenBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return lipgloss.NewStyle().Bold(true).Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers("ID", "Category", "Diff", "Check", "Prompt")
		for _, p := range selected {
			category := p.Category
			if p.Subcategory != "" {
				category += "/" + p.Subcategory
			}
			t.Row(p.ID, category, string(p.Difficulty), p.CheckType, util.Snippet(p.Prompt, 50))
		}
		fmt.Fprintln(out, t.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	addFilterFlags(promptsCmd)
}
