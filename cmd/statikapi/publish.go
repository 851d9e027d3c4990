package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/statikapi/statikapi/internal/publish"
)

func publishCmd(g *globals) *cobra.Command {
	var (
		bucket      string
		prefix      string
		dryRun      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the last build to S3-compatible storage",
		Long: `Upload every artifact listed in the manifest, then the manifest.

Each artifact is checked against the manifest hash before upload.
Credentials come from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY in the
environment or the project's .env file.

Examples:
  statikapi publish --dry-run
  statikapi publish --bucket=my-api --prefix=v1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			pc := cfg.Publish
			if bucket != "" {
				pc.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				pc.Prefix = prefix
			}
			env, err := cfg.Env()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			result, err := publish.Publish(ctx, publish.NewClient(pc, env), cfg.OutPath(), publish.Options{
				Bucket:      pc.Bucket,
				Prefix:      pc.Prefix,
				DryRun:      dryRun,
				Concurrency: concurrency,
				OnObject: func(o publish.Object) {
					info(w, "%s %s", o.Key, g.style(styleGray, humanize.Bytes(uint64(o.Bytes))))
				},
			})
			if err != nil {
				return err
			}

			verb := "Published"
			if result.DryRun {
				verb = "Would publish"
			}
			fmt.Fprintln(w)
			g.success(w, "%s %d object(s), %s, to s3://%s/%s in %s", verb, len(result.Objects),
				humanize.Bytes(uint64(result.Bytes)), pc.Bucket, publish.Key(pc.Prefix, ""),
				result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Verify and list objects without uploading")
	cmd.Flags().IntVar(&concurrency, "concurrency", publish.DefaultConcurrency, "Parallel uploads")

	return cmd
}
