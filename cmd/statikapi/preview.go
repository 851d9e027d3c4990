package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/dev"
	"github.com/statikapi/statikapi/internal/errors"
)

func previewCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve the last build without rebuilding",
		Long: `Serve an existing output directory: GET /users/1 returns
<outDir>/users/1/index.json, and the manifest is at /_statikapi/manifest.

Examples:
  statikapi preview
  statikapi preview --addr=0.0.0.0:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if _, err := build.ReadManifest(cfg.OutPath()); err != nil {
				return errors.New("E204").WithFile(cfg.OutDir).Wrap(err).
					WithSuggestion("Run `statikapi build` first")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			return dev.Preview(ctx, cfg, dev.PreviewOptions{Addr: addr}, func(bound string) {
				g.success(w, "Previewing %s at %s", cfg.OutDir+"/", g.style(styleBold, "http://"+bound))
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config)")

	return cmd
}
