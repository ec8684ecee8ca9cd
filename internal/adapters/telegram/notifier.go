package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"argus/internal/domain/alert"
	"argus/pkg/logger"
	"argus/pkg/templates"
)

const notifyRetries = 3

// sender is the slice of Bot the notifier needs
type sender interface {
	SendNotificationWithRetry(ctx context.Context, chatID int64, text string, maxRetries int) error
}

// AlertNotifier delivers triggered alerts to a Telegram chat.
type AlertNotifier struct {
	bot       sender
	templates *templates.Registry
	chatID    int64
	log       *logger.Logger
}

// NewAlertNotifier creates a notifier pushing alerts to chatID
func NewAlertNotifier(bot *Bot, tmpl *templates.Registry, chatID int64, log *logger.Logger) *AlertNotifier {
	return &AlertNotifier{
		bot:       bot,
		templates: tmpl,
		chatID:    chatID,
		log:       log.With("component", "telegram_notifications"),
	}
}

// Notify renders the template matching the alert type and sends it.
// Alert types without a template fall back to plain text.
func (n *AlertNotifier) Notify(ctx context.Context, a *alert.Alert) error {
	data := map[string]string{
		"Message":   templates.SafeText(a.Message),
		"Severity":  a.Severity,
		"Timestamp": a.Timestamp.UTC().Format(time.RFC3339),
	}

	text, err := n.templates.Render("notifications/"+a.Type, data)
	if err != nil {
		n.log.Warnw("No template for alert type, sending plain text",
			"type", a.Type,
			"error", err,
		)
		text = fmt.Sprintf("[%s] %s", strings.ToUpper(a.Severity), templates.SafeText(a.Message))
	}

	return n.bot.SendNotificationWithRetry(ctx, n.chatID, text, notifyRetries)
}
