// Package templates provides project scaffolding templates.
//
// Each template is a statikapi.json plus a src-api/ tree of endpoint
// modules, enough for `statikapi build` to produce output right away.
//
// # Available Templates
//
//   - basic: a single static endpoint
//   - dynamic: a parameterized route and a catch-all with paths()
//   - remote-data: endpoints that fetch from an HTTP API at build time
//
// # Usage
//
//	tmpl, err := templates.Get("dynamic")
//	if err != nil {
//	    return err
//	}
//	if err := tmpl.Create(projectDir, templates.Config{ProjectName: "my-api"}); err != nil {
//	    return err
//	}
//
// # Template Variables
//
//	{{.ProjectName}}     - Name of the project
//	{{.SrcDir}}          - Endpoint source directory
//	{{.OutDir}}          - Output directory
package templates
