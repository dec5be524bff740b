package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/build"
	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/dev"
	"github.com/ffyyc/web/internal/telemetry"
)

func devCmd(flags *globalFlags) *cobra.Command {
	var (
		port       int
		host       string
		noReload   bool
		noFallback bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server with live reload.

The dev server builds the project, watches the source tree, rebuilds on
change and refreshes connected browsers. Unknown paths fall back to
index.html so client-side routes load.

Examples:
  ffyyc dev
  ffyyc dev --port=8080
  ffyyc dev --host=0.0.0.0 --no-reload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadProject()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}
			if noReload {
				cfg.Dev.HotReload = false
			}
			if noFallback {
				cfg.Dev.HistoryFallback = false
			}

			p := newPrinter(cmd)
			p.title("ffyyc dev")

			server, err := dev.NewServer(dev.ServerOptions{
				Config:  cfg,
				Logger:  config.NewLogger(os.Stderr, flags.debug),
				Metrics: telemetry.Default(),
				Build:   build.Options{Env: "development"},
				OnBuildComplete: func(result *build.Result, err error) {
					if err != nil {
						p.fail("Build failed")
						return
					}
					p.success("Built in %s", result.Duration.Round(time.Millisecond))
				},
				OnReload: func(clients int) {
					p.success("Reloaded %d browsers", clients)
				},
			})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			p.info("Serving %s", accentStyle.Render(cfg.DevURL()))
			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from the project file)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from the project file)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Disable live reload")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Answer unknown paths with 404 instead of index.html")
	return cmd
}
