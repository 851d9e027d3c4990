// Command statikapi builds static JSON APIs from a tree of endpoint
// modules.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/module"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleGray   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBold   = lipgloss.NewStyle().Bold(true)
)

// globals are the persistent flags shared by every command.
type globals struct {
	dir     string
	verbose bool
	noColor bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "statikapi",
		Short: "Build static JSON APIs from endpoint modules",
		Long: `statikapi turns a directory of endpoint modules into a tree of
JSON files that any static host can serve.

  src-api/index.js        -> api-out/index.json
  src-api/users/[id].js   -> api-out/users/1/index.json, ...
  src-api/docs/[...slug]  -> api-out/docs/a/b/index.json, ...

Files and directories starting with "_" are private helpers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				errors.DisableColors()
			}
			level := slog.LevelInfo
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", "", "Project directory (default: nearest directory with a config file)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		buildCmd(g),
		devCmd(g),
		previewCmd(g),
		initCmd(g),
		publishCmd(g),
		routesCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads the project named by --dir, or the one containing the
// working directory.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.dir != "" {
		return config.Load(g.dir)
	}
	return config.LoadFromWorkingDir()
}

// scriptHost creates the module host with the project's .env exposed to
// modules.
func scriptHost(cfg *config.Config) (*module.ScriptHost, map[string]string, error) {
	env, err := cfg.Env()
	if err != nil {
		return nil, nil, err
	}
	host, err := module.NewScriptHost(module.ScriptOptions{Env: env, Logger: slog.Default()})
	if err != nil {
		return nil, nil, err
	}
	return host, env, nil
}

func (g *globals) style(s lipgloss.Style, text string) string {
	if g != nil && g.noColor {
		return text
	}
	return s.Render(text)
}

// success prints a success message.
func (g *globals) success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", g.style(styleGreen, "✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func (g *globals) warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", g.style(styleYellow, "⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func (g *globals) errorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", g.style(styleRed, "✗"), fmt.Sprintf(format, args...))
}
