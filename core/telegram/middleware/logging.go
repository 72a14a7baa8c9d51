package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/callbacks"
	tghelpers "github.com/AcmeNiles/AcmeTradeBot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const dedupWindow = 10 * time.Second

// seenUpdates remembers update ids so an update that passes the global chain
// and a route chain is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
	gcAt time.Time
}

var receipts = &seenUpdates{seen: make(map[int]time.Time)}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.gcAt) {
		for k, ts := range s.seen {
			if now.Sub(ts) > dedupWindow {
				delete(s.seen, k)
			}
		}
		s.gcAt = now.Add(dedupWindow)
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware sets the update rid and logging context and emits one
// sampled debug receipt per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}

		var chatID, userID int64
		chat, user := c.Chat(), c.Sender()
		if chat != nil {
			chatID = chat.ID
		}
		if user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if !logger.ShouldSampleDebug() || !receipts.first(upd.ID, time.Now()) {
			return next(c)
		}
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.Int("update_id", upd.ID),
		}
		if chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chatID), slog.String("chat_type", string(chat.Type)))
		}
		if user != nil {
			attrs = append(attrs, slog.Int64("user_id", userID))
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.Parse(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 64)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		case upd.Message != nil:
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
