// Package auth runs the identity claim handshake and caches its outcome.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/provider"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
)

const component = "auth"

var (
	// ErrMalformedClaim is a claim reply with neither an identity nor a link.
	ErrMalformedClaim = errors.New("malformed claim response")
	// ErrIdentityMismatch is a sealed identity belonging to another Telegram user.
	ErrIdentityMismatch = errors.New("claim identity does not match caller")
)

// Claimer submits a sealed identity to the provider.
type Claimer interface {
	Claim(ctx context.Context, sealedIdentity string) (provider.ClaimOutcome, error)
}

// Envelope seals outbound identities and opens inbound ones.
type Envelope interface {
	Seal(v any) (string, error)
	Open(env string, v any) error
}

// Options configure a Manager.
type Options struct {
	Store    session.Store
	Provider Claimer
	Envelope Envelope
	TTL      time.Duration
	// CallbackURL is embedded in the identity so the provider knows where to deliver orders.
	CallbackURL string
}

// Manager answers "is this user authenticated" and completes webhook claims.
type Manager struct {
	store       session.Store
	claimer     Claimer
	env         Envelope
	ttl         time.Duration
	callbackURL string
}

// New returns a Manager.
func New(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &Manager{
		store:       opts.Store,
		claimer:     opts.Provider,
		env:         opts.Envelope,
		ttl:         opts.TTL,
		callbackURL: opts.CallbackURL,
	}
}

// IsAuthenticated returns the caller's auth state. A cached, unexpired
// Authenticated entry is returned without any network call.
func (m *Manager) IsAuthenticated(ctx context.Context, id domain.Identity) domain.AuthState {
	if sess, ok := m.store.Get(id.UserID); ok {
		if _, authed := sess.Auth.(domain.Authenticated); authed {
			logger.Debug(ctx, component, "auth.cached", slog.Int64("user_id", id.UserID))
			return sess.Auth
		}
	}

	start := time.Now()
	state := m.claim(ctx, id)
	attrs := []slog.Attr{
		slog.Int64("user_id", id.UserID),
		slog.String("state", domain.AuthKind(state)),
		slog.Duration("duration", logger.Took(start)),
	}
	switch s := state.(type) {
	case domain.Authenticated:
		logger.Info(ctx, component, "auth.authenticated", attrs...)
	case domain.LoginRequired:
		logger.Info(ctx, component, "auth.login_required", attrs...)
	case domain.AuthFailed:
		logger.Warn(ctx, component, "auth.failed", append(attrs, logger.Err(s.Err))...)
	}
	return state
}

func (m *Manager) claim(ctx context.Context, id domain.Identity) domain.AuthState {
	if id.WebhookURL == "" {
		id.WebhookURL = m.callbackURL
	}
	sealed, err := m.env.Seal(id)
	if err != nil {
		return domain.AuthFailed{Err: fmt.Errorf("seal identity: %w", err)}
	}
	logger.Debug(ctx, component, "auth.claim", slog.Int64("user_id", id.UserID))

	outcome, err := m.claimer.Claim(ctx, sealed)
	if err != nil {
		return domain.AuthFailed{Err: err}
	}

	switch o := outcome.(type) {
	case provider.ClaimSealed:
		res, err := m.openIdentity(o.EncryptedUserData)
		if err != nil {
			return domain.AuthFailed{Err: err}
		}
		if res.TelegramID() != id.UserID {
			return domain.AuthFailed{Err: fmt.Errorf("%w: got %d", ErrIdentityMismatch, res.TelegramID())}
		}
		state := domain.Authenticated{Result: res}
		m.store.PutAuth(id.UserID, state, m.ttl)
		return state
	case provider.ClaimLink:
		state := domain.LoginRequired{URL: o.URL}
		if !m.store.PutAuth(id.UserID, state, m.ttl) {
			// the webhook completed while the claim was in flight
			if sess, ok := m.store.Get(id.UserID); ok {
				if _, authed := sess.Auth.(domain.Authenticated); authed {
					return sess.Auth
				}
			}
		}
		return state
	case provider.ClaimMalformed:
		return domain.AuthFailed{Err: fmt.Errorf("%w: %s", ErrMalformedClaim, o.Reason)}
	default:
		return domain.AuthFailed{Err: ErrMalformedClaim}
	}
}

// Complete handles the asynchronous half: it opens a webhook identity and
// stores it for the Telegram user it names, whoever triggered the claim.
func (m *Manager) Complete(ctx context.Context, encryptedUserData string) (int64, domain.AuthResult, error) {
	res, err := m.openIdentity(encryptedUserData)
	if err != nil {
		logger.Warn(ctx, component, "auth.failed", slog.String("source", "webhook"), logger.Err(err))
		return 0, domain.AuthResult{}, err
	}
	userID := res.TelegramID()
	stored := m.store.PutAuth(userID, domain.Authenticated{Result: res}, m.ttl)
	logger.Info(ctx, component, "auth.authenticated",
		slog.String("source", "webhook"),
		slog.Int64("user_id", userID),
		slog.Bool("stored", stored),
	)
	return userID, res, nil
}

// Logout forgets everything about the user.
func (m *Manager) Logout(ctx context.Context, userID int64) {
	m.store.Logout(userID)
	logger.Info(ctx, component, "auth.logout", slog.Int64("user_id", userID))
}

func (m *Manager) openIdentity(env string) (domain.AuthResult, error) {
	var p domain.IdentityPayload
	if err := m.env.Open(env, &p); err != nil {
		return domain.AuthResult{}, err
	}
	return domain.NewAuthResult(p)
}
