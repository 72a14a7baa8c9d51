package helpers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Enqueue hands run to the dispatcher, or runs it inline when there is no
// dispatcher or its queue is unavailable.
func Enqueue(ctx context.Context, d *sender.Dispatcher, chatID int64, action string, run func() error) error {
	if d == nil {
		return run()
	}
	err := d.Enqueue(ctx, chatID, action, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendMDV2 sends a MarkdownV2 message to the current chat.
func SendMDV2(c tele.Context, d *sender.Dispatcher, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, DisableWebPagePreview: true}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	return Enqueue(BuildContext(c), d, chatID, "send.md", func() error {
		return c.Send(text, opts)
	})
}
