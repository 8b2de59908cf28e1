package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"hermes/internal/domain/insight"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Notifier delivers urgent insight alerts to a Telegram chat.
type Notifier struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

// Config contains Telegram notifier configuration
type Config struct {
	Token       string
	ChatID      int64
	HTTPTimeout time.Duration
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram chat id is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Notifier{
		api:    api,
		chatID: cfg.ChatID,
		// Telegram limit is 30 msg/sec, stay well under it
		rateLimiter: rate.NewLimiter(rate.Limit(20), 30),
		log:         logger.Get().With("component", "telegram_notifier"),
	}, nil
}

// SendUrgent sends an alert for an insight that crossed the urgency thresholds.
func (n *Notifier) SendUrgent(ctx context.Context, item insight.StoredInsight) error {
	if err := n.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	msg := tgbotapi.NewMessage(n.chatID, formatUrgent(item))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		n.log.Errorf("Failed to send urgent alert for %s: %v", item.Result.Ticker, err)
		return errors.Wrap(err, "failed to send telegram message")
	}

	n.log.Infof("Sent urgent alert for %s", item.Result.Ticker)
	return nil
}

func formatUrgent(item insight.StoredInsight) string {
	r := item.Result

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>%s</b>\n\n", r.Ticker)
	fmt.Fprintf(&b, "%s\n\n", r.SummaryText)
	fmt.Fprintf(&b, "Sentiment: %+.2f\n", r.Sentiment)

	if score := r.MaxAnomalyScore(); score > 0 {
		fmt.Fprintf(&b, "Anomaly score: %.2f\n", score)
	}
	for _, a := range r.Anomalies {
		fmt.Fprintf(&b, "• %s (%.2f)\n", a.Label, a.Score)
	}

	if len(r.Keywords) > 0 {
		fmt.Fprintf(&b, "\n%s", strings.Join(r.Keywords, ", "))
	}

	return b.String()
}
