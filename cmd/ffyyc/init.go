package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template    string
		name        string
		description string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a new project",
		Long: `Create a new project from a template.

Templates:
  signup   sign-up application with intro and search scenes (default)
  minimal  project file, template, one script and one stylesheet

Examples:
  ffyyc init
  ffyyc init web --template=minimal`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			tmpl, err := templates.Get(template)
			if err != nil {
				return err
			}
			written, err := tmpl.Create(abs, templates.Config{
				ProjectName: name,
				Description: description,
			}, force)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			p.title("Created " + tmpl.Name + " project in " + abs)
			for _, rel := range written {
				p.muted("%s", rel)
			}
			p.info("")
			if abs != mustGetwd() {
				p.info("cd %s", dir)
			}
			p.info("ffyyc dev")
			p.info("")
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", templates.DefaultName, "Project template")
	cmd.Flags().StringVar(&name, "name", "", "Project name (default: directory name)")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing project")
	return cmd
}

func mustGetwd() string {
	wd, _ := os.Getwd()
	return wd
}
