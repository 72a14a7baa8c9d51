package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/provider"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
	"github.com/AcmeNiles/AcmeTradeBot/internal/resolver"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
)

const component = "intent"

// Update is one inbound chat message.
type Update struct {
	Identity domain.Identity
	Text     string
}

// Authenticator answers the auth gate.
type Authenticator interface {
	IsAuthenticated(ctx context.Context, id domain.Identity) domain.AuthState
	Logout(ctx context.Context, userID int64)
}

// Resolver validates tokens and receivers.
type Resolver interface {
	ResolveTokens(ctx context.Context, caller domain.Caller, ids []string, known ...domain.TokenRecord) (resolver.Result, error)
	ResolveReceiver(ctx context.Context, caller domain.Caller, username string) (domain.Receiver, resolver.Result, error)
}

// Links mints payment links.
type Links interface {
	PaymentLink(ctx context.Context, caller domain.Caller, p provider.Payment) (string, error)
}

// Inviter returns the community link shown on the menu.
type Inviter interface {
	InviteLink(ctx context.Context, userID int64) (string, error)
}

// PaymentCard is an executed pay or request turn.
type PaymentCard struct {
	Intent   domain.Intent
	Token    domain.TokenRecord
	Receiver *domain.Receiver
	Amount   decimal.Decimal
	Link     string
}

// Presenter renders router outcomes. Implementations own all copy and markup.
type Presenter interface {
	Menu(ctx context.Context, u Update, inviteLink string) error
	LoginPrompt(ctx context.Context, u Update, in domain.Intent, url string) error

	AskToken(ctx context.Context, u Update, in domain.Intent, featured []string) error
	AskReceiver(ctx context.Context, u Update, in domain.Intent) error
	AskAmount(ctx context.Context, u Update, in domain.Intent, token domain.TokenRecord) error

	NotListed(ctx context.Context, u Update, invalid []domain.InvalidToken, inviteLink string) error
	ReceiverNotFound(ctx context.Context, u Update, username string) error
	Skipped(ctx context.Context, u Update, skipped []string, max int) error

	Trade(ctx context.Context, u Update, in domain.Intent, tokens []domain.TokenRecord) error
	Listing(ctx context.Context, u Update, owner string, tokens []domain.TokenRecord) error
	Payment(ctx context.Context, u Update, card PaymentCard) error
	Vault(ctx context.Context, u Update, url string) error

	Unavailable(ctx context.Context, u Update) error
	Failure(ctx context.Context, u Update) error
}

// Options configure a Router.
type Options struct {
	Store       session.Store
	Auth        Authenticator
	Resolver    Resolver
	Links       Links
	Presenter   Presenter
	Inviter     Inviter
	AuthIntents domain.IntentSet
	MaxListed   int
	TopTokens   []string
	TopTTL      time.Duration
	Featured    map[domain.Intent][]string
	VaultURL    string
}

// Router drives the per-user conversation: parse, gate, resolve, execute, reset.
type Router struct {
	store       session.Store
	auth        Authenticator
	resolver    Resolver
	links       Links
	present     Presenter
	inviter     Inviter
	authIntents domain.IntentSet
	maxListed   int
	topTokens   []string
	topTTL      time.Duration
	featured    map[domain.Intent][]string
	vaultURL    string
	locks       *userLocks
}

// New returns a Router.
func New(opts Options) *Router {
	if opts.MaxListed <= 0 {
		opts.MaxListed = 3
	}
	if opts.TopTTL <= 0 {
		opts.TopTTL = time.Hour
	}
	if opts.AuthIntents == nil {
		opts.AuthIntents = domain.IntentSet{}
	}
	return &Router{
		store:       opts.Store,
		auth:        opts.Auth,
		resolver:    opts.Resolver,
		links:       opts.Links,
		present:     opts.Presenter,
		inviter:     opts.Inviter,
		authIntents: opts.AuthIntents,
		maxListed:   opts.MaxListed,
		topTokens:   opts.TopTokens,
		topTTL:      opts.TopTTL,
		featured:    opts.Featured,
		vaultURL:    opts.VaultURL,
		locks:       newUserLocks(),
	}
}

// errContract marks a turn the router cannot make sense of.
var errContract = errors.New("turn violates router contract")

// Handle processes one message. Turns of the same user run one at a time.
func (r *Router) Handle(ctx context.Context, u Update) error {
	p := Parse(u.Text)
	if p.Empty() {
		return nil
	}
	uid := u.Identity.UserID
	unlock, err := r.locks.lock(ctx, uid)
	if err != nil {
		return err
	}
	defer unlock()
	if p.Unknown != "" {
		logger.Info(ctx, component, "intent.unknown",
			slog.Int64("user_id", uid),
			slog.String("command", p.Unknown),
		)
		r.store.ClearTransient(uid)
		return r.menu(ctx, u)
	}
	sess := r.store.Update(uid, func(s *session.Session) {
		s.Turn = Merge(s.Turn, p)
	})
	return r.run(ctx, u, sess)
}

// Resume replays a turn that stopped at the login prompt. It is a no-op for
// users with nothing pending.
func (r *Router) Resume(ctx context.Context, id domain.Identity) error {
	unlock, err := r.locks.lock(ctx, id.UserID)
	if err != nil {
		return err
	}
	defer unlock()
	sess, ok := r.store.Get(id.UserID)
	if !ok || sess.Turn.Awaiting != session.SlotAuth || sess.Turn.Intent == "" {
		return nil
	}
	logger.Info(ctx, component, "turn.resume",
		slog.Int64("user_id", id.UserID),
		slog.String("intent", string(sess.Turn.Intent)),
	)
	return r.run(ctx, Update{Identity: id}, sess)
}

func (r *Router) run(ctx context.Context, u Update, sess session.Session) error {
	start := time.Now()
	uid := u.Identity.UserID
	turn := sess.Turn

	switch {
	case turn.Intent == "":
		// free text with nothing pending
		r.store.ClearTransient(uid)
		return r.menu(ctx, u)
	case turn.Intent == domain.IntentLogout:
		r.auth.Logout(ctx, uid)
		return r.menu(ctx, u)
	case turn.Intent.MenuClass():
		r.store.ClearTransient(uid)
		return r.menu(ctx, u)
	}

	caller := domain.Caller{Identity: u.Identity}
	if res, ok := sess.Authenticated(); ok {
		caller.Auth = &res
	}
	if r.authIntents.Has(turn.Intent) {
		switch st := r.auth.IsAuthenticated(ctx, u.Identity).(type) {
		case domain.Authenticated:
			res := st.Result
			caller.Auth = &res
		case domain.LoginRequired:
			r.await(uid, session.SlotAuth, nil)
			r.log(ctx, u, turn, "turn.awaiting", start, slog.String("awaiting", string(session.SlotAuth)))
			return r.present.LoginPrompt(ctx, u, turn.Intent, st.URL)
		default:
			r.store.ClearTransient(uid)
			r.log(ctx, u, turn, "turn.unavailable", start)
			return r.present.Unavailable(ctx, u)
		}
	}

	done, err := r.dispatch(ctx, u, caller, sess)
	switch {
	case err == nil && done:
		r.store.ClearTransient(uid)
		r.log(ctx, u, turn, "turn.executed", start)
		return nil
	case err == nil:
		cur, _ := r.store.Get(uid)
		r.log(ctx, u, turn, "turn.awaiting", start, slog.String("awaiting", string(cur.Turn.Awaiting)))
		return nil
	case errors.Is(err, remote.ErrUnavailable):
		r.store.ClearTransient(uid)
		logger.Warn(ctx, component, "turn.unavailable", r.attrs(u, turn, start, logger.Err(err))...)
		return r.present.Unavailable(ctx, u)
	default:
		r.store.ClearTransient(uid)
		logger.Error(ctx, component, "turn.failed", r.attrs(u, turn, start, logger.Err(err))...)
		if perr := r.present.Failure(ctx, u); perr != nil {
			return perr
		}
		return err
	}
}

func (r *Router) dispatch(ctx context.Context, u Update, caller domain.Caller, sess session.Session) (bool, error) {
	turn := sess.Turn
	switch turn.Intent {
	case domain.IntentTrade, domain.IntentShare, domain.IntentBuy:
		return r.trade(ctx, u, caller, sess)
	case domain.IntentTop3:
		if len(turn.Tokens) == 0 && turn.Receiver == "" {
			return r.top3(ctx, u, caller, sess)
		}
		return r.trade(ctx, u, caller, sess)
	case domain.IntentList:
		return r.list(ctx, u, caller, sess)
	case domain.IntentPay, domain.IntentRequest:
		return r.payment(ctx, u, caller, sess)
	case domain.IntentVault:
		return true, r.present.Vault(ctx, u, r.vaultURL)
	}
	return false, fmt.Errorf("%w: intent %q", errContract, turn.Intent)
}

// trade covers the four token/receiver combinations.
func (r *Router) trade(ctx context.Context, u Update, caller domain.Caller, sess session.Session) (bool, error) {
	turn := sess.Turn
	uid := u.Identity.UserID

	var known []domain.TokenRecord
	if turn.Receiver != "" {
		recv, listed, ok, err := r.receiver(ctx, u, caller, turn)
		if !ok || err != nil {
			return false, err
		}
		if len(turn.Tokens) == 0 {
			return true, r.showListing(ctx, u, "@"+recv.Username, listed)
		}
		known = listed.Valid
	}

	if len(turn.Tokens) == 0 {
		r.await(uid, session.SlotToken, nil)
		return false, r.present.AskToken(ctx, u, turn.Intent, r.featured[turn.Intent])
	}

	known = append(known, sess.TopTokens...)
	res, err := r.resolver.ResolveTokens(ctx, caller, turn.Tokens, known...)
	if err != nil {
		return false, err
	}
	if len(res.Valid) == 0 {
		return false, r.rejectTokens(ctx, u, res.Invalid)
	}
	if err := r.present.Trade(ctx, u, turn.Intent, res.Valid); err != nil {
		return false, err
	}
	if len(res.Invalid) > 0 {
		if err := r.present.NotListed(ctx, u, res.Invalid, r.inviteLink(ctx, uid)); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Router) top3(ctx context.Context, u Update, caller domain.Caller, sess session.Session) (bool, error) {
	uid := u.Identity.UserID
	top := sess.TopTokens
	if len(top) == 0 {
		ids, _ := resolver.Limit(r.topTokens, r.maxListed)
		if len(ids) == 0 {
			return false, r.askList(ctx, u)
		}
		res, err := r.resolver.ResolveTokens(ctx, caller, ids)
		if err != nil {
			return false, err
		}
		top = res.Valid
		if len(top) > 0 {
			r.store.Update(uid, func(s *session.Session) {
				s.TopTokens = top
				s.TopExpiresAt = time.Now().Add(r.topTTL)
			})
		}
	}
	if len(top) == 0 {
		return false, r.askList(ctx, u)
	}
	return true, r.present.Listing(ctx, u, "", top)
}

// askList turns an empty top3 into a list prompt.
func (r *Router) askList(ctx context.Context, u Update) error {
	r.store.Update(u.Identity.UserID, func(s *session.Session) {
		s.Turn.Intent = domain.IntentList
		s.Turn.Awaiting = session.SlotToken
	})
	return r.present.AskToken(ctx, u, domain.IntentList, r.featured[domain.IntentList])
}

func (r *Router) list(ctx context.Context, u Update, caller domain.Caller, sess session.Session) (bool, error) {
	turn := sess.Turn
	uid := u.Identity.UserID
	if len(turn.Tokens) == 0 {
		r.await(uid, session.SlotToken, nil)
		return false, r.present.AskToken(ctx, u, turn.Intent, r.featured[turn.Intent])
	}

	kept, skipped := resolver.Limit(turn.Tokens, r.maxListed)
	if len(skipped) > 0 {
		logger.Info(ctx, component, "list.truncated",
			slog.Int64("user_id", uid),
			slog.Int("requested", len(turn.Tokens)),
			slog.Int("max", r.maxListed),
			slog.String("skipped", strings.Join(skipped, ",")),
		)
	}
	res, err := r.resolver.ResolveTokens(ctx, caller, kept, sess.TopTokens...)
	if err != nil {
		return false, err
	}
	if len(res.Valid) == 0 {
		return false, r.rejectTokens(ctx, u, res.Invalid)
	}
	if err := r.present.Listing(ctx, u, u.Identity.DisplayName(), res.Valid); err != nil {
		return false, err
	}
	if len(res.Invalid) > 0 {
		if err := r.present.NotListed(ctx, u, res.Invalid, r.inviteLink(ctx, uid)); err != nil {
			return false, err
		}
	}
	if len(skipped) > 0 {
		if err := r.present.Skipped(ctx, u, skipped, r.maxListed); err != nil {
			return false, err
		}
	}
	return true, nil
}

// payment collects token, receiver (pay only) and a positive amount in that order.
func (r *Router) payment(ctx context.Context, u Update, caller domain.Caller, sess session.Session) (bool, error) {
	turn := sess.Turn
	uid := u.Identity.UserID
	if len(turn.Tokens) == 0 {
		r.await(uid, session.SlotToken, nil)
		return false, r.present.AskToken(ctx, u, turn.Intent, r.featured[turn.Intent])
	}

	// one token per payment; the one typed last wins
	newest := turn.Tokens[len(turn.Tokens)-1:]
	res, err := r.resolver.ResolveTokens(ctx, caller, newest, sess.TopTokens...)
	if err != nil {
		return false, err
	}
	if len(res.Valid) == 0 {
		return false, r.rejectTokens(ctx, u, res.Invalid)
	}
	token := res.Valid[0]

	var recv *domain.Receiver
	if turn.Intent == domain.IntentPay || turn.Receiver != "" {
		if turn.Receiver == "" {
			r.await(uid, session.SlotReceiver, nil)
			return false, r.present.AskReceiver(ctx, u, turn.Intent)
		}
		rc, _, ok, err := r.receiver(ctx, u, caller, turn)
		if !ok || err != nil {
			return false, err
		}
		recv = &rc
	}

	if !turn.Amount.Valid || !turn.Amount.Decimal.IsPositive() {
		r.await(uid, session.SlotAmount, func(t *session.Turn) { t.Amount = decimal.NullDecimal{} })
		return false, r.present.AskAmount(ctx, u, turn.Intent, token)
	}

	pay := provider.Payment{
		ChainID:         token.ChainID,
		ContractAddress: token.ContractAddress,
		Amount:          turn.Amount.Decimal,
	}
	if recv != nil {
		pay.To = recv.WalletAddress
	}
	link, err := r.links.PaymentLink(ctx, caller, pay)
	if err != nil {
		return false, err
	}
	return true, r.present.Payment(ctx, u, PaymentCard{
		Intent:   turn.Intent,
		Token:    token,
		Receiver: recv,
		Amount:   turn.Amount.Decimal,
		Link:     link,
	})
}

// receiver resolves the pending username. ok is false when the user was
// asked to pick another receiver.
func (r *Router) receiver(ctx context.Context, u Update, caller domain.Caller, turn session.Turn) (domain.Receiver, resolver.Result, bool, error) {
	recv, listed, err := r.resolver.ResolveReceiver(ctx, caller, turn.Receiver)
	if errors.Is(err, resolver.ErrReceiverNotFound) {
		logger.Info(ctx, component, "receiver.rejected",
			slog.Int64("user_id", u.Identity.UserID),
			slog.String("receiver", turn.Receiver),
		)
		r.await(u.Identity.UserID, session.SlotReceiver, func(t *session.Turn) { t.Receiver = "" })
		return recv, listed, false, r.present.ReceiverNotFound(ctx, u, turn.Receiver)
	}
	if err != nil {
		return recv, listed, false, err
	}
	return recv, listed, true, nil
}

func (r *Router) showListing(ctx context.Context, u Update, owner string, listed resolver.Result) error {
	if err := r.present.Listing(ctx, u, owner, listed.Valid); err != nil {
		return err
	}
	if len(listed.Invalid) > 0 {
		logger.Info(ctx, component, "receiver.invalid_listings",
			slog.Int64("user_id", u.Identity.UserID),
			slog.Int("invalid", len(listed.Invalid)),
		)
	}
	return nil
}

// rejectTokens keeps the turn but drops the identifiers that failed, so the
// next message can supply replacements.
func (r *Router) rejectTokens(ctx context.Context, u Update, invalid []domain.InvalidToken) error {
	bad := make(map[string]struct{}, len(invalid))
	for _, inv := range invalid {
		bad[domain.TokenKey(inv.Query)] = struct{}{}
	}
	logger.Info(ctx, component, "tokens.rejected",
		slog.Int64("user_id", u.Identity.UserID),
		slog.Int("invalid", len(invalid)),
	)
	r.await(u.Identity.UserID, session.SlotToken, func(t *session.Turn) {
		kept := t.Tokens[:0]
		for _, tok := range t.Tokens {
			if _, drop := bad[domain.TokenKey(tok)]; !drop {
				kept = append(kept, tok)
			}
		}
		t.Tokens = kept
	})
	return r.present.NotListed(ctx, u, invalid, r.inviteLink(ctx, u.Identity.UserID))
}

func (r *Router) menu(ctx context.Context, u Update) error {
	return r.present.Menu(ctx, u, r.inviteLink(ctx, u.Identity.UserID))
}

// inviteLink is cached per session; failures fall back to an empty link.
func (r *Router) inviteLink(ctx context.Context, uid int64) string {
	if sess, ok := r.store.Get(uid); ok && sess.InviteLink != "" {
		return sess.InviteLink
	}
	if r.inviter == nil {
		return ""
	}
	link, err := r.inviter.InviteLink(ctx, uid)
	if err != nil {
		logger.Warn(ctx, component, "invite.failed", slog.Int64("user_id", uid), logger.Err(err))
		return ""
	}
	r.store.Update(uid, func(s *session.Session) { s.InviteLink = link })
	return link
}

func (r *Router) await(uid int64, slot session.Slot, mutate func(*session.Turn)) {
	r.store.Update(uid, func(s *session.Session) {
		s.Turn.Awaiting = slot
		if mutate != nil {
			mutate(&s.Turn)
		}
	})
}

func (r *Router) attrs(u Update, turn session.Turn, start time.Time, extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{
		slog.Int64("user_id", u.Identity.UserID),
		slog.String("intent", string(turn.Intent)),
		slog.Int("tokens", len(turn.Tokens)),
		slog.Duration("duration", logger.Took(start)),
	}
	return append(attrs, extra...)
}

func (r *Router) log(ctx context.Context, u Update, turn session.Turn, event string, start time.Time, extra ...slog.Attr) {
	logger.Info(ctx, component, event, r.attrs(u, turn, start, extra...)...)
}
