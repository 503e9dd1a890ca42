package notify

import (
	"context"
	"errors"
	"finsync/src/report"
	"time"

	"github.com/slack-go/slack"
)

const ChannelSlack = "slack"

// SlackTransport posts the digest to an incoming webhook.
type SlackTransport struct {
	webhookURL string
	loc        *time.Location
}

func NewSlackTransport(webhookURL string, loc *time.Location) *SlackTransport {
	return &SlackTransport{webhookURL: webhookURL, loc: loc}
}

func (s *SlackTransport) Send(ctx context.Context, summary *report.Summary) (string, error) {
	if s.webhookURL == "" {
		return "", errors.New("slack webhook url is not configured")
	}
	text := summary.Text(s.loc)
	msg := &slack.WebhookMessage{
		Text: text,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "```"+text+"```", false, false), nil, nil),
		}},
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return "", err
	}
	return text, nil
}
