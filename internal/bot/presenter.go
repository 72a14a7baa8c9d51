package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/format"
	tghelpers "github.com/AcmeNiles/AcmeTradeBot/core/telegram/helpers"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/keyboard"
	tgsender "github.com/AcmeNiles/AcmeTradeBot/core/telegram/sender"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/intent"

	tele "gopkg.in/telebot.v4"
)

// callbackIntent is the unique of every button that replays a command.
const callbackIntent = "intent"

var (
	menuBody = format.Bold("👋 Welcome to Acme!") + "\n\n" +
		format.Bold("🤑 Share to Earn") + "\n" +
		format.Escape("Share trading links and earn 50% fees + airdrops.") + "\n\n" +
		format.Bold("💳 Tap. Trade. Done.") + "\n" +
		format.Escape("Easily buy any token with your bank card.") + "\n\n" +
		format.Bold("🔒 Own your Tokens") + "\n" +
		format.Escape("Tokens are secured in a safe. Only you have the keys.")

	loginBody    = format.Bold("💸 Claim early pass. Start your exchange. Now.") + " 💸"
	loggedInBody = format.Escape("💸 Let's start making some money! 💸")
)

// Sender is the part of *tele.Bot the presenter sends through.
type Sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// PresenterOptions configure a Presenter.
type PresenterOptions struct {
	Sender Sender
	// Dispatcher is optional; without it messages are sent inline.
	Dispatcher *tgsender.Dispatcher
	MenuPhoto  string
	TradePhoto string
}

// Presenter renders router outcomes as Telegram messages.
type Presenter struct {
	sender     Sender
	dispatcher *tgsender.Dispatcher
	menuPhoto  string
	tradePhoto string
}

var _ intent.Presenter = (*Presenter)(nil)

// NewPresenter returns a Presenter.
func NewPresenter(opts PresenterOptions) *Presenter {
	return &Presenter{
		sender:     opts.Sender,
		dispatcher: opts.Dispatcher,
		menuPhoto:  opts.MenuPhoto,
		tradePhoto: opts.TradePhoto,
	}
}

func chatOf(id domain.Identity) int64 {
	if id.ChatID != 0 {
		return id.ChatID
	}
	return id.UserID
}

// send queues one MarkdownV2 message, as a photo caption when photo is set.
func (p *Presenter) send(ctx context.Context, id domain.Identity, action, body, photo string, markup *tele.ReplyMarkup) error {
	chatID := chatOf(id)
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeMarkdownV2,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	}
	var what any = body
	if photo != "" {
		what = &tele.Photo{File: tele.FromURL(photo), Caption: body}
	}
	return tghelpers.Enqueue(ctx, p.dispatcher, chatID, action, func() error {
		_, err := p.sender.Send(tele.ChatID(chatID), what, opts)
		return err
	})
}

func intentButton(text string, in domain.Intent, args ...string) keyboard.Button {
	data := in.Command()
	if len(args) > 0 {
		data += " " + strings.Join(args, " ")
	}
	return keyboard.Data(text, callbackIntent, data)
}

func sayHi(inviteLink string) []keyboard.Button {
	if inviteLink == "" {
		return nil
	}
	return []keyboard.Button{keyboard.URL("👋 Say Hi!", inviteLink)}
}

func (p *Presenter) Menu(ctx context.Context, u intent.Update, inviteLink string) error {
	markup := keyboard.Rows(
		[]keyboard.Button{intentButton("📈 Trade Now", domain.IntentTrade), intentButton("🤑 Share to Earn", domain.IntentShare)},
		[]keyboard.Button{intentButton("⬆️ Pay", domain.IntentPay), intentButton("⬇️ Request", domain.IntentRequest)},
		[]keyboard.Button{intentButton("🏆 Top 3", domain.IntentTop3), intentButton("🔒 Vault", domain.IntentVault)},
		sayHi(inviteLink),
	)
	return p.send(ctx, u.Identity, "menu", menuBody, p.menuPhoto, markup)
}

func (p *Presenter) LoginPrompt(ctx context.Context, u intent.Update, in domain.Intent, url string) error {
	body := loginBody + "\n\n" + format.Italic("Your "+in.Command()+" continues as soon as you're in.")
	markup := keyboard.Rows([]keyboard.Button{keyboard.WebApp("👑 Claim Early Access Pass", url)})
	return p.send(ctx, u.Identity, "login", body, "", markup)
}

func (p *Presenter) AskToken(ctx context.Context, u intent.Update, in domain.Intent, featured []string) error {
	body := format.Bold("TYPE") + format.Escape(" or select the token symbol you want to "+verb(in)+":")
	buttons := make([]keyboard.Button, 0, len(featured))
	for _, sym := range featured {
		buttons = append(buttons, intentButton(sym, in, sym))
	}
	return p.send(ctx, u.Identity, "ask.token", body, "", keyboard.Grid(buttons, 3))
}

func (p *Presenter) AskReceiver(ctx context.Context, u intent.Update, in domain.Intent) error {
	q := "Who do you want to pay?"
	if in == domain.IntentRequest {
		q = "Who do you want to request from?"
	}
	body := format.Escape(q+" Send their ") + format.Code("@username")
	return p.send(ctx, u.Identity, "ask.receiver", body, "", nil)
}

func (p *Presenter) AskAmount(ctx context.Context, u intent.Update, in domain.Intent, token domain.TokenRecord) error {
	body := format.Escape("How much ") + format.Bold(token.Symbol) + format.Escape(" do you want to "+verb(in)+"?")
	return p.send(ctx, u.Identity, "ask.amount", body, "", nil)
}

func (p *Presenter) NotListed(ctx context.Context, u intent.Update, invalid []domain.InvalidToken, inviteLink string) error {
	names := make([]string, 0, len(invalid))
	for _, t := range invalid {
		names = append(names, t.Query)
	}
	isAre := " is"
	if len(names) > 1 {
		isAre = " are"
	}
	body := "🚫 " + format.Bold(joinNames(names)) + format.Escape(isAre+" not listed. Message us to request listing:")
	return p.send(ctx, u.Identity, "not_listed", body, "", keyboard.Rows(sayHi(inviteLink)))
}

func (p *Presenter) ReceiverNotFound(ctx context.Context, u intent.Update, username string) error {
	body := "🚫 " + format.Bold("@"+username) + format.Escape(" is not on Acme yet. Send another ") + format.Code("@username")
	return p.send(ctx, u.Identity, "receiver.not_found", body, "", nil)
}

func (p *Presenter) Skipped(ctx context.Context, u intent.Update, skipped []string, max int) error {
	body := format.Escape("ℹ️ Only the first "+strconv.Itoa(max)+" tokens are listed. Skipped: ") + format.Bold(joinNames(skipped))
	return p.send(ctx, u.Identity, "skipped", body, "", nil)
}

func (p *Presenter) Trade(ctx context.Context, u intent.Update, in domain.Intent, tokens []domain.TokenRecord) error {
	for _, t := range tokens {
		if err := p.tokenCard(ctx, u, in, t); err != nil {
			return err
		}
	}
	return nil
}

func (p *Presenter) tokenCard(ctx context.Context, u intent.Update, in domain.Intent, t domain.TokenRecord) error {
	row := []keyboard.Button{keyboard.WebApp(strings.TrimSpace(verbTitle(in)+" "+t.Symbol), t.TradingLink)}
	if in == domain.IntentShare {
		row = append(row, keyboard.URL("🤑 Share", shareURL(t.TradingLink, "Trade $"+t.Symbol+" on Acme")))
	}
	return p.send(ctx, u.Identity, "card.token", tokenCard(in, t), p.tradePhoto, keyboard.Rows(row))
}

func (p *Presenter) Listing(ctx context.Context, u intent.Update, owner string, tokens []domain.TokenRecord) error {
	in, heading := domain.IntentTrade, "📋 "+format.Escape("Tokens listed by ")+format.Bold(owner)
	switch owner {
	case "":
		heading = "🏆 " + format.Bold("Top tokens")
	case u.Identity.DisplayName():
		in = domain.IntentShare
		heading = "📋 " + format.Bold("Your listed tokens")
	}
	if err := p.send(ctx, u.Identity, "listing", heading, "", nil); err != nil {
		return err
	}
	return p.Trade(ctx, u, in, tokens)
}

func (p *Presenter) Payment(ctx context.Context, u intent.Update, card intent.PaymentCard) error {
	amount := card.Amount.String() + " " + card.Token.Symbol
	var body string
	var row []keyboard.Button
	if card.Intent == domain.IntentRequest {
		body = "⬇️ " + format.Escape("Request ") + format.Bold(amount)
		if card.Receiver != nil {
			body += format.Escape(" from ") + format.Bold("@"+card.Receiver.Username)
		}
		body += "\n" + format.Escape("Forward the link to get paid.")
		row = []keyboard.Button{
			keyboard.URL("📤 Share request", shareURL(card.Link, "Pay me "+amount+" on Acme")),
			keyboard.WebApp("Open", card.Link),
		}
	} else {
		body = "⬆️ " + format.Escape("Pay ") + format.Bold(amount)
		if card.Receiver != nil {
			body += format.Escape(" to ") + format.Bold("@"+card.Receiver.Username)
		}
		row = []keyboard.Button{keyboard.WebApp("⬆️ Pay", card.Link)}
	}
	body = format.Lines(body, format.Link("🔗 Payment link", card.Link))
	return p.send(ctx, u.Identity, "card.payment", body, "", keyboard.Rows(row))
}

func (p *Presenter) Vault(ctx context.Context, u intent.Update, url string) error {
	body := format.Bold("🔒 Your vault") + "\n" + format.Escape("Tokens are secured in a safe. Only you have the keys.")
	var markup *tele.ReplyMarkup
	if url != "" {
		markup = keyboard.Rows([]keyboard.Button{keyboard.WebApp("Open Vault", url)})
	}
	return p.send(ctx, u.Identity, "vault", body, "", markup)
}

func (p *Presenter) Unavailable(ctx context.Context, u intent.Update) error {
	body := format.Escape("⚠️ Acme is unreachable right now. Please try again in a moment.")
	return p.send(ctx, u.Identity, "unavailable", body, "", nil)
}

func (p *Presenter) Failure(ctx context.Context, u intent.Update) error {
	body := format.Escape("Something went wrong and your request was reset. Start again from ") + format.Code("/menu")
	return p.send(ctx, u.Identity, "failure", body, "", nil)
}

// LoggedIn confirms a completed claim.
func (p *Presenter) LoggedIn(ctx context.Context, id domain.Identity) error {
	logger.Debug(ctx, "bot", "login.confirmed", slog.Int64("user_id", id.UserID))
	return p.send(ctx, id, "logged_in", loggedInBody, "", nil)
}

func verbTitle(in domain.Intent) string {
	v := verb(in)
	return strings.ToUpper(v[:1]) + v[1:]
}
