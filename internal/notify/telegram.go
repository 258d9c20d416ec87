// Package notify pushes trade and risk alerts to the operator.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/models"
)

// Notifier receives trading events. Implementations must never block the
// trading loop on delivery problems; log and move on.
type Notifier interface {
	TradeExecuted(symbol string, sig models.TradingSignal, size, fillPrice float64)
	TradeBlocked(symbol, reason string)
}

// Noop discards all events.
type Noop struct{}

func (Noop) TradeExecuted(string, models.TradingSignal, float64, float64) {}
func (Noop) TradeBlocked(string, string)                                  {}

// Telegram sends alerts to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram authorizes the bot token and binds the target chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notify").Logger(),
	}, nil
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn().Err(err).Msg("telegram delivery failed")
	}
}

// TradeExecuted announces a filled order.
func (t *Telegram) TradeExecuted(symbol string, sig models.TradingSignal, size, fillPrice float64) {
	t.send(fmt.Sprintf("✅ %s %s %.6f @ %.2f\nstrength %.2f, confidence %.2f\n%s",
		sig.Type, symbol, size, fillPrice, sig.Strength, sig.Confidence, sig.Reason))
}

// TradeBlocked announces a risk-gate rejection.
func (t *Telegram) TradeBlocked(symbol, reason string) {
	t.send(fmt.Sprintf("⛔ trade blocked for %s: %s", symbol, reason))
}
