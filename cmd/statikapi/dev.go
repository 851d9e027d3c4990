package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/dev"
	"github.com/statikapi/statikapi/internal/metrics"
)

func devCmd(g *globals) *cobra.Command {
	var (
		port        int
		host        string
		openBrowser bool
		notifyURL   string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Build, watch and serve with live reload",
		Long: `Build the project, then rebuild only what a file change touches.

The dev server serves the output directory the way a static host would,
pushes every changed route to WebSocket clients at /_statikapi/ws, and
accepts POST /_ui/changed?route=... from external tools. Metrics are served
at /_statikapi/metrics.

Examples:
  statikapi dev
  statikapi dev --port=9000
  statikapi dev --notify=http://localhost:5173`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}
			if openBrowser {
				cfg.Dev.Open = true
			}
			if notifyURL != "" {
				cfg.Dev.NotifyURL = notifyURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDev(cmd.Context(), g, cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVarP(&openBrowser, "open", "o", false, "Open the browser on start")
	cmd.Flags().StringVar(&notifyURL, "notify", "", "Preview origin to POST route changes to")

	return cmd
}

func runDev(ctx context.Context, g *globals, w io.Writer, cfg *config.Config) error {
	host, _, err := scriptHost(cfg)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := dev.NewServer(dev.ServerOptions{
		Config:  cfg,
		Host:    host,
		Metrics: metrics.New(metrics.WithProcessCollectors()),
		OnReady: func(result *build.Result) {
			printFailures(g, w, result.Failures)
			g.success(w, "Built %d route(s) in %s", result.Written, result.Duration.Round(time.Millisecond))
			info(w, "Serving %s at %s", cfg.OutDir+"/", g.style(styleBold, cfg.DevURL()))
			if cfg.Dev.Open {
				openURL(cfg.DevURL())
			}
		},
		OnRebuild: func(out *dev.Outcome) {
			printOutcome(g, w, out)
		},
	})

	err = server.Start(ctx)
	fmt.Fprintln(w, "\n  Shutting down...")
	return err
}

// printOutcome reports one handled file event. A file can fail some
// routes and still write others.
func printOutcome(g *globals, w io.Writer, out *dev.Outcome) {
	if out.Err != nil && len(out.Failures) == 0 {
		g.errorMsg(w, "%s %s", out.File, g.style(styleGray, out.Op.String()))
		info(w, "%s", out.Err)
		return
	}
	printFailures(g, w, out.Failures)
	for _, route := range out.Removed {
		g.warn(w, "removed %s", route)
	}
	if n := len(out.Written); n > 0 {
		g.success(w, "%s %s %s", out.File, g.style(styleGray, fmt.Sprintf("%d route(s)", n)),
			g.style(styleGray, out.Duration.Round(time.Millisecond).String()))
	}
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
