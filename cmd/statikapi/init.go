package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/templates"
)

func initCmd(g *globals) *cobra.Command {
	var (
		template string
		srcDir   string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a new statikapi project",
		Long: fmt.Sprintf(`Scaffold a config file and an endpoint source tree.

Templates: %s

Examples:
  statikapi init
  statikapi init my-api --template=dynamic`, strings.Join(templates.List(), ", ")),
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
			tc := templates.Config{ProjectName: filepath.Base(abs), SrcDir: srcDir, OutDir: outDir}
			if err := os.MkdirAll(abs, 0755); err != nil {
				return err
			}
			if err := tmpl.Create(abs, tc); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			g.success(w, "Created %s from the %q template", dir, tmpl.Name)
			for _, p := range tmpl.Paths(tc) {
				info(w, "%s", p)
			}
			fmt.Fprintln(w)
			info(w, "Next:")
			if dir != "." {
				info(w, "  cd %s", dir)
			}
			info(w, "  statikapi dev")
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", templates.DefaultTemplate, "Project template")
	cmd.Flags().StringVar(&srcDir, "src", "", "Endpoint source directory")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory")

	return cmd
}
