package router

import (
	"log/slog"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute dispatches every callback through the registry by its unique.
// The spinner is cleared before the handler runs.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.Parse(c.Callback())
		extras := []slog.Attr{slog.String("cb_key", logger.SanitizeLimit(key, 64))}

		h, ok := reg.Callback(key)
		if !ok {
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, handlerName("callback.", key), reg.CallbackNotFound(), extras...)
		}
		_ = c.Respond()
		return handleWithSummary(c, handlerName("callback.", key), h, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
