package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/pkg/router"
)

func routesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the route table",
		Long: `Print every route in table order: static routes first, then
dynamic, then catch-all, each group sorted by pattern. Files whose names
are not valid patterns are listed after the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			table, err := router.NewScanner(cfg.SrcPath()).Scan()
			if err != nil {
				return err
			}
			printRoutes(g, cmd.OutOrStdout(), cfg.SrcDir, table)
			return nil
		},
	}
}

func printRoutes(g *globals, w io.Writer, srcDir string, table *router.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range table.Routes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Type, r.Path(), g.style(styleGray, srcDir+"/"+r.Rel))
	}
	_ = tw.Flush()

	for _, inv := range table.Invalid {
		g.errorMsg(w, "%s %s", srcDir+"/"+inv.Rel, g.style(styleGray, inv.Err.Error()))
	}
	if len(table.Routes) == 0 {
		g.warn(w, "no routes under %s/", srcDir)
	}
}
