package bot

import (
	"context"
	"log/slog"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/webhook"
)

type greeter interface {
	LoggedIn(ctx context.Context, id domain.Identity) error
}

type resumer interface {
	Resume(ctx context.Context, id domain.Identity) error
}

// Notifier greets a user whose claim just completed and replays the intent
// that was parked behind the login prompt.
type Notifier struct {
	greeter greeter
	resumer resumer
}

var _ webhook.Notifier = (*Notifier)(nil)

// NewNotifier returns a Notifier.
func NewNotifier(g greeter, r resumer) *Notifier {
	return &Notifier{greeter: g, resumer: r}
}

func (n *Notifier) Notify(ctx context.Context, d webhook.Delivery) error {
	id := identityFromDelivery(d)
	if id.UserID == 0 {
		logger.Debug(ctx, "bot", "notify.skip",
			slog.String("order_id", d.Order.ID),
			slog.String("status", "skip"),
		)
		return nil
	}
	ctx = logger.WithUser(ctx, id.UserID)
	if err := n.greeter.LoggedIn(ctx, id); err != nil {
		return err
	}
	return n.resumer.Resume(ctx, id)
}

func identityFromDelivery(d webhook.Delivery) domain.Identity {
	id := domain.Identity{UserID: d.TelegramID}
	if d.Auth == nil {
		return id
	}
	a := d.Auth
	id.UserID = a.TelegramID()
	id.Username = a.TelegramUsername
	id.FirstName = a.TelegramFirstName
	id.LastName = a.TelegramLastName
	id.LanguageCode = a.LanguageCode
	id.ChatID = a.ChatID
	id.ProfileImageURL = a.ProfileImageURL
	id.WebhookURL = a.WebhookURL
	id.ReferrerID = a.ReferrerID
	return id
}
