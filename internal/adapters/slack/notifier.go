// Package slack posts triggered alerts to a Slack channel.
package slack

import (
	"context"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"

	"argus/internal/domain/alert"
	"argus/pkg/errors"
	"argus/pkg/logger"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// client abstracts the Slack API methods the notifier uses, enabling
// test mocks.
type client interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Config holds Slack notifier settings
type Config struct {
	BotToken  string
	ChannelID string
}

// Notifier delivers alerts as colored attachments to one channel.
type Notifier struct {
	client    client
	channelID string
	log       *logger.Logger
}

// NewNotifier creates a Slack notifier and verifies the token
func NewNotifier(cfg Config, log *logger.Logger) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "slack bot token is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "slack channel id is required")
	}

	n := &Notifier{
		client:    slackapi.New(cfg.BotToken),
		channelID: cfg.ChannelID,
		log:       log.With("component", "slack_notifier"),
	}

	auth, err := n.client.AuthTest()
	if err != nil {
		return nil, errors.Wrap(err, "slack auth test failed")
	}
	n.log.Infow("Slack notifier ready", "bot_user", auth.User, "channel", cfg.ChannelID)

	return n, nil
}

var severityColors = map[string]string{
	alert.SeverityHigh:   "#d63031",
	alert.SeverityMedium: "#fdcb6e",
	alert.SeverityLow:    "#74b9ff",
}

// Notify posts the alert to the configured channel
func (n *Notifier) Notify(ctx context.Context, a *alert.Alert) error {
	att := slackapi.Attachment{
		Title:    attachmentTitle(a.Type),
		Text:     a.Message,
		Color:    severityColors[a.Severity],
		Fallback: a.Message,
		Fields: []slackapi.AttachmentField{
			{Title: "Severity", Value: a.Severity, Short: true},
			{Title: "Time", Value: a.Timestamp.UTC().Format(time.RFC3339), Short: true},
		},
	}

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessage(n.channelID, slackapi.MsgOptionAttachments(att))
		return postErr
	})
	if err != nil {
		return errors.Wrap(err, "failed to post alert to slack")
	}

	n.log.Debugw("Alert posted to Slack",
		"type", a.Type,
		"severity", a.Severity,
	)
	return nil
}

func attachmentTitle(alertType string) string {
	switch alertType {
	case alert.TypeCost:
		return "Cost alert"
	case alert.TypeTrend:
		return "Cost trend"
	default:
		return alertType
	}
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors,
// honoring the RetryAfter hint when the API provides one.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
