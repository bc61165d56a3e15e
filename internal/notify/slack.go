// Package notify holds external notification sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/spec-kit/parts-support/internal/domain"
)

// webhookPoster matches slackapi.PostWebhookContext so tests can swap it.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackWebhook posts notifications and staff announcements to a Slack
// incoming webhook.
type SlackWebhook struct {
	url  string
	post webhookPoster
}

// NewSlackWebhook builds a sink for url. An empty url yields nil.
func NewSlackWebhook(url string) *SlackWebhook {
	if url == "" {
		return nil
	}
	return &SlackWebhook{url: url, post: slackapi.PostWebhookContext}
}

// Name identifies the sink in logs.
func (s *SlackWebhook) Name() string { return "slack" }

// Deliver mirrors a user notification into the channel.
func (s *SlackWebhook) Deliver(ctx context.Context, n domain.Notification) error {
	return s.send(ctx, fmt.Sprintf("[%s] user %s: %s", n.Type, n.UserID, n.Message))
}

// Announce posts free text, used for ticket activity.
func (s *SlackWebhook) Announce(ctx context.Context, text string) error {
	return s.send(ctx, text)
}

func (s *SlackWebhook) send(ctx context.Context, text string) error {
	if s == nil || s.url == "" {
		return errors.New("slack: webhook url not configured")
	}
	if err := s.post(ctx, s.url, &slackapi.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}
