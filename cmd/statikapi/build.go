package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/errors"
)

func buildCmd(g *globals) *cobra.Command {
	var (
		pretty   bool
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every route into the output directory",
		Long: `Build every endpoint module into a static JSON artifact.

The output directory is cleared first. Each concrete route is written to
<outDir>/<route>/index.json and listed in <outDir>/.statikapi/manifest.json.
A route that fails is reported and the rest of the build continues,
unless --fail-fast is set.

Examples:
  statikapi build
  statikapi build --pretty
  statikapi build --fail-fast -C ./site`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), g, cmd.OutOrStdout(), pretty, failFast)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent artifacts and the manifest")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first failed route")

	return cmd
}

func runBuild(ctx context.Context, g *globals, w io.Writer, pretty, failFast bool) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	host, _, err := scriptHost(cfg)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := build.New(cfg, host, build.Options{
		Pretty:   pretty,
		FailFast: failFast,
		OnProgress: func(step string) {
			info(w, "%s", step)
		},
	})

	result, err := builder.Build(ctx)
	if result == nil {
		return err
	}

	fmt.Fprintln(w)
	printFailures(g, w, result.Failures)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	g.success(w, "Built %d route(s) in %s", result.Written, result.Duration.Round(time.Millisecond))
	info(w, "%s  %s", g.style(styleBold, cfg.OutDir+"/"), humanize.Bytes(uint64(result.Bytes)))
	if result.Skipped > 0 {
		info(w, "%s", g.style(styleGray, fmt.Sprintf("%d parameterized route(s) had no paths", result.Skipped)))
	}
	return nil
}

// printFailures lists failed routes, one compact error per route.
func printFailures(g *globals, w io.Writer, failures []build.Failure) {
	for _, f := range failures {
		g.errorMsg(w, "%s %s", g.style(styleBold, f.Route), g.style(styleGray, f.File))
		var e *errors.Error
		if errors.As(f.Err, &e) {
			info(w, "%s", e.FormatCompact())
			if e.Wrapped != nil {
				info(w, "%s", g.style(styleGray, e.Wrapped.Error()))
			}
		} else if f.Err != nil {
			info(w, "%s", f.Err)
		}
	}
}
