// Package router turns registry entries into telebot routes with the shared
// per-route chain and a single summary log line per handled update.
package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	tghelpers "github.com/AcmeNiles/AcmeTradeBot/core/telegram/helpers"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// wrap applies the per-route chain. Recover sits outermost so a panic still
// gets a summary line from the logger below it.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(middleware.MessageMetricsMiddleware(h)))
}

func handleWithSummary(c tele.Context, name string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	if v, ok := c.Get("update_start").(time.Time); ok {
		start = v
	}
	ctx := tghelpers.WithHandler(c, name)
	err := fn(c)

	msgs, kb := middleware.GetCounters(c)
	status := logger.Status(err)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", status),
		slog.String("handler", name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	return err
}

func handlerName(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return prefix + strings.ReplaceAll(key, " ", "_")
}

// errorCode prefers a Code() method, then the Telegram API code, then the
// dynamic type name.
func errorCode(err error) string {
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(code)
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return "TG_" + strings.ToUpper(strings.ReplaceAll(apiErr.Description, " ", "_"))
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
