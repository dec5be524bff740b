package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// Notifier announces a finished publish.
type Notifier interface {
	NotifyPublished(ctx context.Context, report *Report) error
}

// WebhookNotifier posts to a Slack incoming webhook.
type WebhookNotifier struct {
	url string
}

// NewWebhookNotifier creates a notifier for the webhook URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url}
}

// NotifyPublished posts the report summary.
func (n *WebhookNotifier) NotifyPublished(ctx context.Context, report *Report) error {
	return slack.PostWebhookContext(ctx, n.url, &slack.WebhookMessage{
		Text: Summary(report),
	})
}

// ChannelNotifier posts through the Slack Web API.
type ChannelNotifier struct {
	client  *slack.Client
	channel string
}

// NewChannelNotifier creates a notifier posting to channel with token.
// apiURL overrides the Slack API base URL when set.
func NewChannelNotifier(token, channel, apiURL string) *ChannelNotifier {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &ChannelNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

// NotifyPublished posts the report summary.
func (n *ChannelNotifier) NotifyPublished(ctx context.Context, report *Report) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(Summary(report), false))
	return err
}

// Summary is the Slack message for a report.
func Summary(report *Report) string {
	target := "s3://" + report.Bucket
	if report.Prefix != "" {
		target += "/" + report.Prefix
	}
	return fmt.Sprintf(":rocket: *Build published*\n"+
		"• *Target*: `%s`\n"+
		"• *Files*: %d (%s)\n"+
		"• *Duration*: %s",
		target, len(report.Objects), formatBytes(report.Bytes), report.Duration.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
