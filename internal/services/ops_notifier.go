package services

import (
	"fmt"
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// OpsNotifier posts operational alerts (signups, payments) to a chat.
type OpsNotifier interface {
	Notify(text string)
}

type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewOpsNotifier connects to Telegram. A missing token or chat id, or a
// failed handshake, yields a notifier that only logs.
func NewOpsNotifier(botToken string, chatID int64) OpsNotifier {
	if botToken == "" || chatID == 0 {
		return logNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		slog.Warn("[ops][telegram] bot init failed, alerts go to log", "err", err)
		return logNotifier{}
	}
	slog.Info("[ops][telegram] connected", "bot", bot.Self.UserName)
	return &telegramNotifier{bot: bot, chatID: chatID}
}

func (t *telegramNotifier) Notify(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	go func() {
		if _, err := t.bot.Send(msg); err != nil {
			slog.Warn("[ops][telegram] send failed", "err", err)
		}
	}()
}

type logNotifier struct{}

func (logNotifier) Notify(text string) {
	slog.Info("[ops] " + text)
}

func signupAlert(name, email string) string {
	return fmt.Sprintf("🆕 New signup: <b>%s</b> (%s)", html.EscapeString(name), html.EscapeString(email))
}

func paymentAlert(email, plan string, amountCents int64, currency string) string {
	return fmt.Sprintf("💳 Payment captured: %s bought <b>%s</b> for %d.%02d %s",
		html.EscapeString(email), html.EscapeString(plan), amountCents/100, amountCents%100, currency)
}
