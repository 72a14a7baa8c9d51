// Package bot wires the Acme conversation onto Telegram: handlers, message
// rendering and the provider callback listener.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
	tghelpers "github.com/AcmeNiles/AcmeTradeBot/core/telegram/helpers"
	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/router"
	tgsender "github.com/AcmeNiles/AcmeTradeBot/core/telegram/sender"
	"github.com/AcmeNiles/AcmeTradeBot/internal/auth"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/envelope"
	"github.com/AcmeNiles/AcmeTradeBot/internal/intent"
	"github.com/AcmeNiles/AcmeTradeBot/internal/market"
	"github.com/AcmeNiles/AcmeTradeBot/internal/orders"
	"github.com/AcmeNiles/AcmeTradeBot/internal/provider"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
	"github.com/AcmeNiles/AcmeTradeBot/internal/resolver"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
	"github.com/AcmeNiles/AcmeTradeBot/internal/webhook"

	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg *coreconfig.Config

	bot        *tele.Bot
	registry   *tg.Registry
	dispatcher *tgsender.Dispatcher

	sessions  *session.Memory
	ledger    orders.Ledger
	provider  *provider.Client
	auth      *auth.Manager
	router    *intent.Router
	presenter *Presenter
	photos    *profilePhotos
	verifier  *webhook.Verifier

	stopHooks func() error
}

// New builds the app. db may be nil, in which case orders are kept in memory.
func New(cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config provided")
	}
	bot, err := tg.NewBot(cfg, false)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, db, bot)
}

func newApp(cfg *coreconfig.Config, db *sqlx.DB, bot *tele.Bot) (*App, error) {
	cipher, err := envelope.New(cfg.Crypto.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("bot: envelope: %w", err)
	}

	var verifier *webhook.Verifier
	if cfg.Hooks.PublicKeyFile != "" {
		if verifier, err = webhook.LoadVerifier(cfg.Hooks.PublicKeyFile); err != nil {
			return nil, fmt.Errorf("bot: webhook verifier: %w", err)
		}
	}

	rc := remote.New(remote.Options{
		Attempts: cfg.Remote.Attempts,
		Timeout:  cfg.Remote.Timeout,
		Backoff:  cfg.Remote.Backoff,
	})
	acme := provider.New(cfg.Provider, rc)
	sessions := session.NewMemory()

	var ledger orders.Ledger = orders.NewMemory()
	if db != nil {
		ledger = orders.NewSQL(db)
	}

	authMgr := auth.New(auth.Options{
		Store:       sessions,
		Provider:    acme,
		Envelope:    cipher,
		TTL:         cfg.Auth.TTL,
		CallbackURL: hookURL(cfg.Hooks),
	})

	res := resolver.New(resolver.Options{
		Provider:   acme,
		Aggregator: market.NewAggregator(rc, cfg.Chains.AggregatorURL),
		Quotes:     market.NewQuotes(rc, cfg.Chains.MarketURL),
		Chains:     market.NewChains(cfg.Chains.Supported),
		MaxListed:  cfg.Bot.MaxListedTokens,
	})

	dispatcher := tgsender.NewDispatcher(tgsender.Options{
		MaxRetries:   cfg.Remote.Attempts,
		RetryBackoff: cfg.Remote.Backoff,
	})
	presenter := NewPresenter(PresenterOptions{
		Sender:     bot,
		Dispatcher: dispatcher,
		MenuPhoto:  cfg.Bot.MenuPhoto,
		TradePhoto: cfg.Bot.TradePhoto,
	})

	conv := intent.New(intent.Options{
		Store:       sessions,
		Auth:        authMgr,
		Resolver:    res,
		Links:       acme,
		Presenter:   presenter,
		Inviter:     NewInviter(bot, cfg.Bot.Group),
		AuthIntents: domain.NewIntentSet(cfg.Auth.AuthenticatedIntents),
		MaxListed:   cfg.Bot.MaxListedTokens,
		TopTokens:   cfg.Bot.TopTokens,
		TopTTL:      cfg.Bot.TopTokensTTL,
		Featured:    featured(cfg.Bot.Featured),
		VaultURL:    cfg.Provider.VaultURL,
	})

	a := &App{
		cfg:        cfg,
		bot:        bot,
		registry:   tg.NewRegistry(),
		dispatcher: dispatcher,
		sessions:   sessions,
		ledger:     ledger,
		provider:   acme,
		auth:       authMgr,
		router:     conv,
		presenter:  presenter,
		photos:     newProfilePhotos(bot),
		verifier:   verifier,
	}
	if err := registerHandlers(a.registry, conv, a.photos); err != nil {
		return nil, err
	}
	a.registry.RegisterCommand("/stats", tg.Command{
		Handler:   statsHandler(a, a.sendMD),
		AdminOnly: true,
		Hidden:    true,
	})
	return a, nil
}

func featured(cfg map[string][]string) map[domain.Intent][]string {
	out := make(map[domain.Intent][]string, len(cfg))
	for name, symbols := range cfg {
		if in, ok := domain.ParseIntent(name); ok {
			out[in] = symbols
		}
	}
	return out
}

// hookURL is the public address of the order callback, empty when the
// listener is not exposed.
func hookURL(h coreconfig.HooksConfig) string {
	if h.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(h.PublicURL, "/") + h.Path
}

func (a *App) sendMD(c tele.Context, text string) error {
	return tghelpers.SendMDV2(c, a.dispatcher, text)
}

func (a *App) Sessions() int { return a.sessions.Len() }

func (a *App) Orders(ctx context.Context) (int, error) { return a.ledger.Count(ctx) }

func (a *App) Sent() uint64 { return a.dispatcher.Sent() }

func (a *App) SendErrors() uint64 { return a.dispatcher.ErrorCount() }

// ReadyAttrs describes the upstreams and the callback listener for the
// startup log line.
func (a *App) ReadyAttrs() []slog.Attr {
	hook := hookURL(a.cfg.Hooks)
	if hook == "" {
		hook = "disabled"
	}
	store := "memory"
	if _, ok := a.ledger.(*orders.SQL); ok {
		store = "postgres"
	}
	return []slog.Attr{
		slog.String("provider_url", a.cfg.Provider.BaseURL),
		slog.String("hook_url", hook),
		slog.Bool("hook_signed", a.verifier != nil),
		slog.String("orders", store),
		slog.Int("chains", len(a.cfg.Chains.Supported)),
	}
}

// CoreConfig exposes the loaded configuration.
func (a *App) CoreConfig() *coreconfig.Config { return a.cfg }

// WebhookHandler serves provider order callbacks.
func (a *App) WebhookHandler() http.Handler {
	return webhook.NewRouter(webhook.Options{
		Path:       a.cfg.Hooks.Path,
		Ledger:     a.ledger,
		Correlator: webhook.IdentityCorrelator{Auth: a.auth},
		Notifier:   NewNotifier(a.presenter, a.router),
		Verifier:   a.verifier,
	})
}

// TelegramRunOptions assembles the runtime: middlewares, routes and the
// provider callback listener lifecycle.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	// Non-admins typing an admin command get the regular conversation reply.
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return handleText(a.router, a.photos, c, c.Text())
		},
	})
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.TextRoutes(a.registry)...)

	onLimited := func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: "Slow down a little."})
		}
		return nil
	}

	return tg.RunOptions{
		Config:      a.cfg,
		Bot:         a.bot,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(a.cfg, onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	if a.cfg.Hooks.Port > 0 {
		hookCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(hookCtx)
		addr := net.JoinHostPort(a.cfg.Hooks.Listen, strconv.Itoa(a.cfg.Hooks.Port))
		h := a.WebhookHandler()
		g.Go(func() error {
			return webhook.Serve(gctx, addr, h)
		})
		a.stopHooks = func() error {
			cancel()
			return g.Wait()
		}
	}
	if u := hookURL(a.cfg.Hooks); u != "" {
		start := time.Now()
		err := a.provider.SetWebhook(ctx, u)
		logger.Info(ctx, "hook", "hooks.register",
			slog.String("url", u),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		if err != nil {
			logger.Warn(ctx, "hook", "hooks.register_failed", logger.Err(err))
		}
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	if a.stopHooks == nil {
		return nil
	}
	if err := a.stopHooks(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "hook", "hooks.stop", logger.Err(err))
		return err
	}
	return nil
}
