package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/callbacks"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/format"
	tghelpers "github.com/AcmeNiles/AcmeTradeBot/core/telegram/helpers"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/intent"

	tele "gopkg.in/telebot.v4"
)

var commandDescriptions = map[domain.Intent]string{
	domain.IntentTrade:   "Trade a token",
	domain.IntentPay:     "Pay someone",
	domain.IntentRequest: "Request a payment",
	domain.IntentList:    "Show your listed tokens",
	domain.IntentShare:   "Share a trading link",
	domain.IntentTop3:    "Top 3 tokens",
	domain.IntentBuy:     "Buy with your bank card",
	domain.IntentVault:   "Open your vault",
	domain.IntentMenu:    "Main menu",
	domain.IntentStart:   "Start",
	domain.IntentLogout:  "Log out",
	domain.IntentCancel:  "Cancel the current action",
}

// conversation is the part of the intent router the handlers drive.
type conversation interface {
	Handle(ctx context.Context, u intent.Update) error
}

// identityOf reads the caller out of an update. "/start CODE" carries a
// referral code unless CODE is a deep link.
func identityOf(c tele.Context) domain.Identity {
	var id domain.Identity
	if u := c.Sender(); u != nil {
		id.UserID = u.ID
		id.Username = u.Username
		id.FirstName = u.FirstName
		id.LastName = u.LastName
		id.LanguageCode = u.LanguageCode
		id.IsBot = u.IsBot
	}
	if chat := c.Chat(); chat != nil {
		id.ChatID = chat.ID
	}
	if msg := c.Message(); msg != nil && c.Callback() == nil {
		id.ReferrerID = intent.StartReferral(msg.Text)
	}
	return id
}

func handleText(conv conversation, photos *profilePhotos, c tele.Context, text string) error {
	id := identityOf(c)
	if id.UserID == 0 || id.IsBot {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	id.ProfileImageURL = photos.URL(ctx, c.Sender())
	return conv.Handle(ctx, intent.Update{Identity: id, Text: text})
}

// registerHandlers binds every intent as a command, the intent button
// callback and the free-text fallback to conv. photos may be nil.
func registerHandlers(reg *tg.Registry, conv conversation, photos *profilePhotos) error {
	for _, in := range domain.Intents {
		reg.RegisterCommand(in.Command(), tg.Command{
			Description: commandDescriptions[in],
			Hidden:      in == domain.IntentStart,
			Handler: func(c tele.Context) error {
				return handleText(conv, photos, c, c.Text())
			},
		})
	}
	err := reg.RegisterCallback(callbackIntent, func(c tele.Context) error {
		return handleText(conv, photos, c, callbacks.Payload(c))
	})
	if err != nil {
		return fmt.Errorf("register %s callback: %w", callbackIntent, err)
	}
	// Buttons from an older build fall back to the menu.
	reg.SetCallbackNotFound(func(c tele.Context) error {
		_ = c.Respond()
		return handleText(conv, photos, c, domain.IntentMenu.Command())
	})
	reg.SetTextFallback(func(c tele.Context) error {
		return handleText(conv, photos, c, c.Text())
	})
	return nil
}

// statsSource is what /stats reports on.
type statsSource interface {
	Sessions() int
	Orders(ctx context.Context) (int, error)
	Sent() uint64
	SendErrors() uint64
}

func statsHandler(src statsSource, send func(c tele.Context, text string) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		orders, err := src.Orders(ctx)
		ordersText := fmt.Sprint(orders)
		if err != nil {
			logger.Warn(ctx, "bot", "stats.orders",
				slog.String("status", "fail"),
				logger.Err(err),
			)
			ordersText = notAvailable
		}
		return send(c, format.Lines(
			format.Bold("📊 Stats"),
			format.Escape("Sessions: "+fmt.Sprint(src.Sessions())),
			format.Escape("Orders: "+ordersText),
			format.Escape(fmt.Sprintf("Sent: %d, errors: %d", src.Sent(), src.SendErrors())),
		))
	}
}
