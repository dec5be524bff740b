package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/app"
	"github.com/ffyyc/web/pkg/router"
)

func routesCmd(flags *globalFlags) *cobra.Command {
	var (
		introRoutes bool
		skipIntro   string
	)

	cmd := &cobra.Command{
		Use:   "routes [path...]",
		Short: "Print the route table",
		Long: `Print the route table the server uses for a navigation, in match
order. Given paths, also print which route each one matches.

Examples:
  ffyyc routes
  ffyyc routes --intro-routes --skip-intro=true / /about /missing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := app.NewRoutes(app.Options{Mode: app.ModeFor(introRoutes)})
			if err != nil {
				return err
			}
			nav := app.Navigation{
				SkipIntro:    skipIntro,
				HasSkipIntro: cmd.Flags().Changed("skip-intro"),
			}
			table := routes.Table(nav)
			state := nav.IntroState()

			p := newPrinter(cmd)
			p.title("Routes (" + routes.Mode().String() + ")")
			p.muted("intro state %s, landing %s", state, router.SelectLandingView(state))
			p.info("")
			for _, r := range table.Routes() {
				p.info("%-10s %-12s %s", r.Name, describePattern(r), mutedStyle.Render(statusText(r.Status)))
			}

			if len(args) > 0 {
				p.info("")
			}
			for _, path := range args {
				m, ok := table.Match(path)
				if !ok {
					p.fail("%s matches nothing", path)
					continue
				}
				line := fmt.Sprintf("%s -> %s", path, accentStyle.Render(m.Route.Name))
				if len(m.Params) > 0 {
					line += mutedStyle.Render(fmt.Sprintf(" %v", m.Params))
				}
				p.info("%s", line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&introRoutes, "intro-routes", false, "Show the intro route table")
	cmd.Flags().StringVar(&skipIntro, "skip-intro", "", "Value of the skipIntro cookie (unset: no cookie)")
	return cmd
}

func describePattern(r router.Route) string {
	if r.Pattern == "" {
		return "*"
	}
	if r.Exact {
		return r.Pattern + " (exact)"
	}
	return strings.TrimSuffix(r.Pattern, "/") + "/..."
}

func statusText(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return fmt.Sprintf("%d", status)
}
