package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/dataviz-agent/internal/agent"
	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataviz-agent/internal/config"
	"github.com/KaramelBytes/dataviz-agent/internal/dataset"
	"github.com/KaramelBytes/dataviz-agent/internal/prompt"
	"github.com/KaramelBytes/dataviz-agent/internal/render"
	"github.com/KaramelBytes/dataviz-agent/internal/sandbox"
	"github.com/KaramelBytes/dataviz-agent/internal/session"
	"github.com/spf13/cobra"
)

var (
	anaModel       string
	anaProviderKey string
	anaSandboxKey  string
	anaOutDir      string
	anaDelimiter   string
	anaMaxRows     int
	anaShowCode    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file> [question]",
	Short: "Run one analysis of a CSV/TSV and print the results",
	Example: `  dataviz analyze zomato.csv
  dataviz analyze sales.tsv "Which region grew fastest?" --out ./charts
  GEMINI_API_KEY=... E2B_API_KEY=... dataviz analyze data.csv --model gemini-2.5-pro`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		question := prompt.DefaultQuestion
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			question = args[1]
		}

		opt := dataset.Options{MaxRows: anaMaxRows, PreviewRows: c.PreviewRows}
		switch anaDelimiter {
		case "":
		case ",":
			opt.Delimiter = ','
		case "\t", "tab":
			opt.Delimiter = '\t'
		case ";":
			opt.Delimiter = ';'
		default:
			return fmt.Errorf("unsupported --delimiter: %s", anaDelimiter)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read dataset: %w", err)
		}
		ds, err := dataset.Parse(args[0], data, opt)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Loaded %s (%d rows, %d columns)\n", ds.Name, ds.TotalRows, len(ds.Columns))

		sess := session.New()
		sess.Model = firstNonEmpty(anaModel, c.DefaultModel, ai.DefaultModel)
		sess.ProviderKey = firstNonEmpty(anaProviderKey, providerKeyFromEnv(sess.Model))
		sess.SandboxKey = firstNonEmpty(anaSandboxKey, os.Getenv("DATAVIZ_SANDBOX_KEY"), os.Getenv("E2B_API_KEY"))

		a := newAgent(c)
		out, err := a.Run(cmd.Context(), sess, question, ds)
		if err != nil {
			var ce *session.ConfigError
			if errors.As(err, &ce) {
				return fmt.Errorf("%w (use --provider-key/--sandbox-key or the environment)", err)
			}
			return err
		}

		fmt.Println()
		fmt.Println(out.Text)
		if anaShowCode && out.Code != "" {
			fmt.Printf("\n--- generated code ---\n%s\n----------------------\n", out.Code)
		}
		fmt.Println()
		rep := out.Report(render.New(logger))
		if err := render.WriteTerminal(os.Stdout, rep, anaOutDir); err != nil {
			return err
		}
		if anaOutDir != "" && rep.Visualizations > 0 {
			fmt.Printf("✓ Wrote visualizations to %s\n", anaOutDir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaModel, "model", "m", "", "model id (see 'dataviz models')")
	analyzeCmd.Flags().StringVar(&anaProviderKey, "provider-key", "", "model provider API key (default from GEMINI_API_KEY or OPENROUTER_API_KEY)")
	analyzeCmd.Flags().StringVar(&anaSandboxKey, "sandbox-key", "", "sandbox API key (default from E2B_API_KEY)")
	analyzeCmd.Flags().StringVarP(&anaOutDir, "out", "o", "", "directory to write images and chart specs")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 100000, "maximum rows to load for column inference (0 = unlimited)")
	analyzeCmd.Flags().BoolVar(&anaShowCode, "show-code", false, "print the generated Python code")
}

// newAgent wires the model runtimes and the sandbox client from config.
func newAgent(c *cfgpkg.Global) *agent.Agent {
	sbCfg := c.Sandbox()
	sbCfg.Logger = logger
	return agent.New(agent.Options{
		Open:              agent.SandboxOpener(sandbox.NewClient(sbCfg)),
		HTTPTimeout:       c.HTTPTimeout(),
		OpenRouterBaseURL: c.OpenRouterBaseURL,
		GeminiBaseURL:     c.GeminiBaseURL,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		Logger:            logger,
	})
}

func providerKeyFromEnv(model string) string {
	mi, ok := ai.LookupModel(model)
	if !ok {
		return ""
	}
	switch mi.Provider {
	case ai.ProviderOpenRouter:
		return firstNonEmpty(os.Getenv("DATAVIZ_PROVIDER_KEY"), os.Getenv("OPENROUTER_API_KEY"))
	default:
		return firstNonEmpty(os.Getenv("DATAVIZ_PROVIDER_KEY"), os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
