package telegramNotifier

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/portfolio_snapshots/config"
	"github.com/KotFed0t/portfolio_snapshots/utils"
	tele "gopkg.in/telebot.v4"
)

// maxMessageLen is the Telegram limit for a text message.
const maxMessageLen = 4096

// TelegramNotifier sends operational alerts to a single chat.
// Without a token or chat id it only logs.
type TelegramNotifier struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func New(cfg *config.Config) *TelegramNotifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.AlertChatID == 0 {
		slog.Info("telegram alerts disabled")
		return &TelegramNotifier{}
	}

	settings := tele.Settings{
		URL:     cfg.Telegram.ApiURL,
		Token:   cfg.Telegram.Token,
		Offline: true,
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TelegramNotifier{bot: b, chat: tele.ChatID(cfg.Telegram.AlertChatID)}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TelegramNotifier.Notify"

	if n.bot == nil {
		slog.Debug("alert not sent, notifier disabled", slog.String("rqID", rqID), slog.String("op", op), slog.String("text", text))
		return nil
	}

	if runes := []rune(text); len(runes) > maxMessageLen {
		text = string(runes[:maxMessageLen])
	}

	if _, err := n.bot.Send(n.chat, text); err != nil {
		slog.Error("failed to send alert", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("alert sent", slog.String("rqID", rqID), slog.String("op", op))
	return nil
}
