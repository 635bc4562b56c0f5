package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/dataviz-agent/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	Long: `Starts the single-page analysis UI. API keys are entered in the page and kept
in server memory for the lifetime of the browser session only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := web.NewServer(web.Config{
			Addr:           addr,
			SessionSecret:  c.SessionSecret,
			CookieSecure:   c.CookieSecure,
			SessionIdle:    c.SessionIdle(),
			MaxUploadBytes: c.MaxUploadBytes(),
			PreviewRows:    c.PreviewRows,
			DefaultModel:   c.DefaultModel,
			Agent:          newAgent(c),
			Logger:         logger,
		})
		fmt.Printf("✓ Serving on http://%s (Ctrl+C to stop)\n", addr)
		if err := srv.Serve(ctx); err != nil {
			return err
		}
		logger.Info("server stopped", zap.String("addr", addr))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
