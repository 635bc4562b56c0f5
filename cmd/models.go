package cmd

import (
	"fmt"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	"github.com/KaramelBytes/dataviz-agent/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported models",
	Example: `  dataviz models
  dataviz models --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeModels(cmd, ai.Models(), modelsJSON)
	},
}

func writeModels(cmd *cobra.Command, models []ai.ModelInfo, asJSON bool) error {
	w := cmd.OutOrStdout()
	if asJSON {
		b, err := utils.PrettyJSON(models)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Label", "Provider", "Context", "Default"})
	for _, m := range models {
		def := ""
		if m.Name == ai.DefaultModel {
			def = "✓"
		}
		t.AppendRow(table.Row{m.Name, m.Label, m.Provider, m.ContextTokens, def})
	}
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
}
