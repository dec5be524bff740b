package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/build"
	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/telemetry"
)

func buildCmd(flags *globalFlags) *cobra.Command {
	var (
		output     string
		env        string
		clean      bool
		noExternal bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the application",
		Long: `Build the source tree into the output directory.

This command:
  • Bundles scripts into common, vendor and main bundles
  • Extracts stylesheets into main.css
  • Copies fonts and images
  • Generates the favicon set
  • Writes index.html and manifest.json

Examples:
  ffyyc build
  ffyyc build --output=public --env=production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadProject()
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Build.Output = output
			}
			if noExternal {
				cfg.Build.NoExternalTools = true
			}

			services, err := config.LoadServices(cfg.ServicesPath())
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			p.title("Building for production")

			builder := build.New(cfg, services, build.Options{
				Env:        env,
				Metrics:    telemetry.Default(),
				OnProgress: func(step string) { p.muted("%s", step) },
			})
			if flags.debug {
				for _, rule := range builder.Rules() {
					p.muted("rule %-15s %s", rule.Name, rule.Test)
				}
				p.muted("services %v", services.Redacted())
			}
			tools := builder.Tools()
			if tools.Esbuild == "" {
				p.warn("esbuild not found; scripts must be plain CommonJS")
			}
			if tools.Sass == "" {
				p.muted("sass not found; using the built-in preprocessor")
			}

			if clean {
				p.info("Cleaning output directory...")
				if err := builder.Clean(); err != nil {
					return err
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			result, err := builder.Build(ctx)
			if err != nil {
				return err
			}

			printResult(p, cfg, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from the project file)")
	cmd.Flags().StringVar(&env, "env", "", "Value injected as ENV.NODE_ENV (default: build.env, then $NODE_ENV)")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove the output directory before building")
	cmd.Flags().BoolVar(&noExternal, "no-external-tools", false, "Do not use esbuild or sass")
	return cmd
}

func printResult(p printer, cfg *config.Config, result *build.Result) {
	p.info("")
	p.success("Build complete in %s", result.Duration.Round(time.Millisecond))
	p.info("")
	p.info("%s", accentStyle.Render(cfg.Build.Output+"/"))
	for i, f := range result.Files {
		branch := "├──"
		if i == len(result.Files)-1 {
			branch = "└──"
		}
		p.info("%s %s %s", branch, f.Path, mutedStyle.Render("("+formatBytes(f.Size)+")"))
	}
	p.info("")
	p.info("Total %s, hash %s", formatBytes(result.TotalSize()), result.Hash)
	p.info("")
}
