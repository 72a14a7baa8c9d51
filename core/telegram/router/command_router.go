package router

import (
	"context"
	"log/slog"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures CommandRoutes.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	admin := middleware.AdminOnly(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	names := reg.Commands()
	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		_, cmd, _ := reg.LookupCommand(name)
		h := cmd.Handler
		if cmd.AdminOnly {
			h = admin(h)
		}
		label := handlerName("command.", name)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler: wrap(func(c tele.Context) error {
				return handleWithSummary(c, label, h)
			}),
		})
	}

	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(names)),
		slog.Int("callbacks", len(reg.Callbacks())),
	)
	return routes
}
