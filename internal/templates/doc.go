// Package templates provides project scaffolding templates.
//
// # Available Templates
//
//   - signup: the sign-up application with intro, search and service
//     configuration (default)
//   - minimal: a project file, template, one script and one stylesheet
//
// # Usage
//
//	tmpl, err := templates.Get("signup")
//	if err != nil {
//	    return err
//	}
//	written, err := tmpl.Create(dir, templates.Config{ProjectName: "web"}, false)
//
// # Template Variables
//
//	{{.ProjectName}}  - name of the project
//	{{.Description}}  - project description
package templates
