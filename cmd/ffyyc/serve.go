package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/app"
	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/telemetry"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr        string
		dist        string
		introRoutes bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the production server",
		Long: `Run the production server.

Every path renders the sign-up view inside the layout. With --intro-routes
the landing page depends on the skipIntro cookie and /search, /intro,
/about and /privacy are routed, with a 404 page for everything else.

Settings come from FFYYC_ADDR, FFYYC_DIST, FFYYC_INTRO_ROUTES and
FFYYC_DEBUG; flags win over the environment.

Examples:
  ffyyc serve
  ffyyc serve --addr=:9000 --dist=dist --intro-routes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.ParseServerEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				env.Addr = addr
			}
			if cmd.Flags().Changed("dist") {
				env.Dist = dist
			}
			if cmd.Flags().Changed("intro-routes") {
				env.IntroRoutes = introRoutes
			}
			if flags.debug {
				env.Debug = true
			}

			logger := config.NewLogger(os.Stderr, env.Debug)
			server, err := app.NewServer(app.ServerConfigFromEnv(env, logger, telemetry.Default()))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dist, "dist", "dist", "Build output directory")
	cmd.Flags().BoolVar(&introRoutes, "intro-routes", false, "Serve the intro route table")
	return cmd
}
