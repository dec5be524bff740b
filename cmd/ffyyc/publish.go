package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffyyc/web/internal/config"
	"github.com/ffyyc/web/internal/publish"
	"github.com/ffyyc/web/internal/telemetry"
)

func publishCmd(flags *globalFlags) *cobra.Command {
	var (
		bucket   string
		prefix   string
		dist     string
		region   string
		profile  string
		endpoint string
		webhook  string
		channel  string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a build to S3",
		Long: `Upload the build output to an S3 bucket and post a Slack message.

index.html and manifest.json are uploaded with Cache-Control no-cache,
fingerprinted files as immutable, everything else cached for an hour.
Credentials come from the AWS default chain (AWS_REGION, AWS_PROFILE, ...).
The Slack webhook defaults to SLACK_WEBHOOK_URL; --slack-channel posts
with the token in SLACK_TOKEN instead.

Examples:
  ffyyc publish --bucket=my-site
  ffyyc publish --bucket=my-site --prefix=releases/42 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadProject()
			if err != nil {
				if !cmd.Flags().Changed("bucket") {
					return err
				}
				cfg = config.New()
			}
			pc := cfg.Publish
			if cmd.Flags().Changed("bucket") {
				pc.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				pc.Prefix = prefix
			}
			if region != "" {
				pc.Region = region
			}
			if profile != "" {
				pc.Profile = profile
			}
			if endpoint != "" {
				pc.Endpoint = endpoint
			}
			if webhook != "" {
				pc.SlackWebhook = webhook
			}
			if pc.SlackWebhook == "" {
				pc.SlackWebhook = os.Getenv("SLACK_WEBHOOK_URL")
			}
			if channel != "" {
				pc.SlackChannel = channel
			}
			out := cfg.OutputPath()
			if dist != "" {
				out = dist
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts := publish.Options{
				Bucket:      pc.Bucket,
				Prefix:      pc.Prefix,
				Concurrency: pc.Concurrency,
				DryRun:      dryRun,
				Logger:      config.NewLogger(os.Stderr, flags.debug),
				Metrics:     telemetry.Default(),
			}
			switch {
			case pc.SlackChannel != "":
				opts.Notifier = publish.NewChannelNotifier(os.Getenv("SLACK_TOKEN"), pc.SlackChannel, "")
			case pc.SlackWebhook != "":
				opts.Notifier = publish.NewWebhookNotifier(pc.SlackWebhook)
			}

			var client publish.ObjectPutter
			if !dryRun {
				c, err := publish.NewClient(ctx, publish.ClientConfig{
					Region:   pc.Region,
					Profile:  pc.Profile,
					Endpoint: pc.Endpoint,
				})
				if err != nil {
					return err
				}
				client = c
			}

			publisher, err := publish.New(client, opts)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			p.title("Publishing " + out)
			report, err := publisher.Publish(ctx, out)
			if report != nil {
				for _, o := range report.Objects {
					p.info("%s %s", o.Key, mutedStyle.Render("("+formatBytes(o.Size)+", "+o.CacheControl+")"))
				}
				p.info("")
			}
			if err != nil {
				return err
			}
			if report.DryRun {
				p.warn("Dry run: %d files, %s not uploaded", len(report.Objects), formatBytes(report.Bytes))
				return nil
			}
			p.success("Uploaded %d files (%s) in %s", len(report.Objects), formatBytes(report.Bytes), report.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket (default publish.bucket)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default publish.prefix)")
	cmd.Flags().StringVar(&dist, "dist", "", "Build output directory (default build.output)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS shared config profile")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().StringVar(&webhook, "slack-webhook", "", "Slack incoming webhook URL")
	cmd.Flags().StringVar(&channel, "slack-channel", "", "Slack channel, posted to with SLACK_TOKEN")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the objects without uploading")
	return cmd
}
