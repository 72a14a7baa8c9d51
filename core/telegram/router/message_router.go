package router

import (
	"strings"

	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextRoutes handles text that did not match a command endpoint: "/cmd"
// typed with arguments or a bot suffix goes to its command, anything else
// to the registry's text fallback.
func TextRoutes(reg *tg.Registry) []tg.Route {
	text := func(c tele.Context) error {
		msg := strings.TrimSpace(c.Text())
		if strings.HasPrefix(msg, "/") {
			if name, cmd, ok := reg.LookupCommand(msg); ok && !cmd.AdminOnly {
				return handleWithSummary(c, handlerName("command.", name), cmd.Handler)
			}
		}
		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "text", fb)
		}
		return nil
	}
	// Media and stickers carry no intent; drop them.
	ignore := func(tele.Context) error { return nil }

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnMedia, Handler: ignore},
		{Endpoint: tele.OnSticker, Handler: ignore},
	}
}
