// Package resolver turns free-text identifiers and receiver usernames into
// validated, tradable token records.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/market"
	"github.com/AcmeNiles/AcmeTradeBot/internal/provider"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
)

const component = "resolver"

// ErrReceiverNotFound means the username has no provider account.
var ErrReceiverNotFound = errors.New("user is not on acme yet")

// Provider is the part of the provider API the resolver needs.
type Provider interface {
	Currencies(ctx context.Context) ([]provider.Currency, error)
	RegisterCurrencies(ctx context.Context, currencies []provider.Currency) error
	TradingLink(ctx context.Context, caller domain.Caller, chainID, address string) (string, error)
	BuyLink(intentID string) string
	PublicProfile(ctx context.Context, username string) (provider.Profile, error)
	ListedTokens(ctx context.Context, userID string) ([]domain.ListedToken, error)
}

// Aggregator looks a token up on one chain.
type Aggregator interface {
	Token(ctx context.Context, chainID, query string) (market.Token, error)
}

// Quoter fetches market data for one contract.
type Quoter interface {
	Quote(ctx context.Context, platform, address string) (market.Quote, error)
}

// Result splits a resolution into usable records and explicit failures.
type Result struct {
	Valid   []domain.TokenRecord
	Invalid []domain.InvalidToken
}

func (r *Result) addValid(rec domain.TokenRecord) {
	for _, v := range r.Valid {
		if v.SameAsset(rec) {
			return
		}
	}
	r.Valid = append(r.Valid, rec)
}

// Options configure a Resolver.
type Options struct {
	Provider   Provider
	Aggregator Aggregator
	Quotes     Quoter
	Chains     *market.Chains
	MaxListed  int
}

// Resolver validates tokens and receivers.
type Resolver struct {
	provider  Provider
	agg       Aggregator
	quotes    Quoter
	chains    *market.Chains
	maxListed int
}

// New returns a Resolver.
func New(opts Options) *Resolver {
	if opts.MaxListed <= 0 {
		opts.MaxListed = 3
	}
	return &Resolver{
		provider:  opts.Provider,
		agg:       opts.Aggregator,
		quotes:    opts.Quotes,
		chains:    opts.Chains,
		maxListed: opts.MaxListed,
	}
}

// MaxListed is the cap applied to listings.
func (r *Resolver) MaxListed() int { return r.maxListed }

// ResolveTokens resolves every identifier. Records that cannot be completed
// land in Invalid under their original identifier. The returned error is
// reserved for remote outages.
//
// known records (for example cached top tokens) lend their trading links and
// intent ids to matching assets.
func (r *Resolver) ResolveTokens(ctx context.Context, caller domain.Caller, ids []string, known ...domain.TokenRecord) (Result, error) {
	var res Result
	reg := &registry{load: r.provider.Currencies}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		rec, reason, err := r.resolveOne(ctx, caller, reg, id, known)
		if err != nil {
			return res, err
		}
		if reason != "" {
			res.Invalid = append(res.Invalid, domain.InvalidToken{Query: id, Reason: reason})
			continue
		}
		res.addValid(rec)
	}
	logger.Info(ctx, component, "tokens.resolved",
		slog.Int("requested", len(ids)),
		slog.Int("valid", len(res.Valid)),
		slog.Int("invalid", len(res.Invalid)),
	)
	return res, nil
}

func (r *Resolver) resolveOne(ctx context.Context, caller domain.Caller, reg *registry, id string, known []domain.TokenRecord) (domain.TokenRecord, string, error) {
	kind := ClassifyIdentifier(id)
	chains := chainsFor(kind, r.chains)
	if len(chains) == 0 {
		return domain.TokenRecord{}, "no supported chain", nil
	}

	rec, fromRegistry, err := r.lookup(ctx, reg, kind, id, chains)
	if err != nil {
		return domain.TokenRecord{}, "", err
	}
	if rec.ContractAddress == "" {
		return domain.TokenRecord{}, "not listed", nil
	}
	if fromRegistry {
		r.enrich(ctx, &rec)
	}
	return r.finish(ctx, caller, rec, known)
}

// lookup tries the provider registry first, then fans out to the aggregator.
func (r *Resolver) lookup(ctx context.Context, reg *registry, kind Kind, id string, chains []market.Chain) (domain.TokenRecord, bool, error) {
	if cur, ok := reg.find(ctx, kind, id, chains); ok {
		logger.Debug(ctx, component, "registry.hit", slog.String("token", id), slog.String("chain_id", string(cur.ChainID)))
		return currencyRecord(cur), true, nil
	}

	cands, err := r.fanOut(ctx, id, chains)
	if err != nil {
		return domain.TokenRecord{}, false, err
	}
	if len(cands) == 0 {
		return domain.TokenRecord{}, false, nil
	}
	best := pickHighestMarketCap(cands)
	if err := r.provider.RegisterCurrencies(ctx, []provider.Currency{recordCurrency(best)}); err != nil {
		logger.Warn(ctx, component, "registry.register_failed", slog.String("token", best.Symbol), logger.Err(err))
	}
	return best, false, nil
}

// fanOut queries every chain concurrently and keeps complete results in chain order.
func (r *Resolver) fanOut(ctx context.Context, id string, chains []market.Chain) ([]domain.TokenRecord, error) {
	results := make([]*domain.TokenRecord, len(chains))
	errs := make([]error, len(chains))

	var g errgroup.Group
	for i, ch := range chains {
		i, ch := i, ch
		g.Go(func() error {
			tok, err := r.agg.Token(ctx, ch.ID, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			rec := tok.Record()
			r.quote(ctx, ch, &rec)
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	var cands []domain.TokenRecord
	var outage error
	for i, rec := range results {
		if rec != nil {
			cands = append(cands, *rec)
			continue
		}
		if errors.Is(errs[i], remote.ErrUnavailable) && outage == nil {
			outage = errs[i]
		}
	}
	if len(cands) == 0 && outage != nil {
		return nil, outage
	}
	logger.Debug(ctx, component, "aggregator.fanout",
		slog.String("token", id),
		slog.Int("chains", len(chains)),
		slog.Int("matches", len(cands)),
	)
	return cands, nil
}

// pickHighestMarketCap keeps the first record on ties; unknown caps rank lowest.
func pickHighestMarketCap(cands []domain.TokenRecord) domain.TokenRecord {
	best := cands[0]
	for _, c := range cands[1:] {
		if !c.MarketCap.Valid {
			continue
		}
		if !best.MarketCap.Valid || c.MarketCap.Decimal.GreaterThan(best.MarketCap.Decimal) {
			best = c
		}
	}
	return best
}

func (r *Resolver) enrich(ctx context.Context, rec *domain.TokenRecord) {
	ch, ok := r.chains.Lookup(rec.ChainID)
	if !ok {
		return
	}
	r.quote(ctx, ch, rec)
}

// quote fills market figures; failures only cost the figures.
func (r *Resolver) quote(ctx context.Context, ch market.Chain, rec *domain.TokenRecord) {
	if r.quotes == nil || ch.Platform == "" {
		return
	}
	q, err := r.quotes.Quote(ctx, ch.Platform, rec.ContractAddress)
	if err != nil {
		logger.Debug(ctx, component, "quote.missing", slog.String("token", rec.Symbol), slog.String("chain_id", ch.ID), logger.Err(err))
		return
	}
	if q.Price.Valid {
		rec.Price = q.Price
	}
	rec.MarketCap = q.MarketCap
	rec.Volume24h = q.Volume24h
	rec.Change24h = q.Change24h
}

// finish attaches a trading link and applies the completeness rule.
func (r *Resolver) finish(ctx context.Context, caller domain.Caller, rec domain.TokenRecord, known []domain.TokenRecord) (domain.TokenRecord, string, error) {
	if rec.IntentID == "" {
		if id, ok := caller.IntentIDFor(rec.ChainID, rec.ContractAddress); ok {
			rec.IntentID = id
		}
	}
	for _, k := range known {
		if !k.SameAsset(rec) {
			continue
		}
		if rec.IntentID == "" {
			rec.IntentID = k.IntentID
		}
		if rec.TradingLink == "" {
			rec.TradingLink = k.TradingLink
		}
	}

	if rec.TradingLink == "" && rec.IntentID != "" {
		rec.TradingLink = r.provider.BuyLink(rec.IntentID)
	}
	if rec.TradingLink == "" {
		link, err := r.provider.TradingLink(ctx, caller, rec.ChainID, rec.ContractAddress)
		switch {
		case errors.Is(err, remote.ErrUnavailable):
			return rec, "", err
		case err != nil:
			logger.Warn(ctx, component, "trading_link.failed", slog.String("token", rec.Symbol), logger.Err(err))
			return rec, "no trading link", nil
		}
		rec.TradingLink = link
	}
	if !rec.Valid() {
		return rec, "incomplete record", nil
	}
	return rec, "", nil
}

// ResolveReceiver loads a counterpart profile and validates up to MaxListed
// of their listed tokens.
func (r *Resolver) ResolveReceiver(ctx context.Context, caller domain.Caller, username string) (domain.Receiver, Result, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	profile, err := r.provider.PublicProfile(ctx, username)
	if errors.Is(err, provider.ErrProfileNotFound) {
		return domain.Receiver{}, Result{}, fmt.Errorf("%w: @%s", ErrReceiverNotFound, username)
	}
	if err != nil {
		return domain.Receiver{}, Result{}, err
	}
	recv := domain.Receiver{Username: profile.UserName, UserID: profile.ID, WalletAddress: profile.WalletAddress}

	listed, err := r.provider.ListedTokens(ctx, profile.ID)
	if err != nil {
		return recv, Result{}, err
	}
	if len(listed) > r.maxListed {
		logger.Info(ctx, component, "receiver.listings_capped",
			slog.String("receiver", recv.Username),
			slog.Int("listed", len(listed)),
			slog.Int("skipped", len(listed)-r.maxListed),
		)
		listed = listed[:r.maxListed]
	}

	var res Result
	for _, lt := range listed {
		rec, reason, err := r.resolveListed(ctx, caller, lt)
		if err != nil {
			return recv, res, err
		}
		if reason != "" {
			res.Invalid = append(res.Invalid, domain.InvalidToken{Query: lt.TokenAddress, Reason: reason})
			continue
		}
		res.addValid(rec)
	}
	return recv, res, nil
}

// resolveListed reuses the listing's intent id, so no new link is minted.
func (r *Resolver) resolveListed(ctx context.Context, caller domain.Caller, lt domain.ListedToken) (domain.TokenRecord, string, error) {
	chainID := domain.CanonicalChainID(string(lt.ChainID))
	ch, ok := r.chains.Lookup(chainID)
	if !ok {
		return domain.TokenRecord{}, "unsupported chain", nil
	}
	tok, err := r.agg.Token(ctx, chainID, lt.TokenAddress)
	switch {
	case errors.Is(err, remote.ErrUnavailable):
		return domain.TokenRecord{}, "", err
	case err != nil:
		return domain.TokenRecord{}, "not listed", nil
	}
	rec := tok.Record()
	rec.IntentID = lt.IntentID
	r.quote(ctx, ch, &rec)
	return r.finish(ctx, caller, rec, nil)
}

// registry memoizes the provider currency list for one resolution call.
type registry struct {
	load func(context.Context) ([]provider.Currency, error)

	once sync.Once
	list []provider.Currency
}

func (g *registry) find(ctx context.Context, kind Kind, id string, chains []market.Chain) (provider.Currency, bool) {
	g.once.Do(func() {
		list, err := g.load(ctx)
		if err != nil {
			logger.Warn(ctx, component, "registry.unavailable", logger.Err(err))
			return
		}
		g.list = list
	})

	allowed := make(map[string]struct{}, len(chains))
	for _, ch := range chains {
		allowed[ch.ID] = struct{}{}
	}
	for _, cur := range g.list {
		if _, ok := allowed[domain.CanonicalChainID(string(cur.ChainID))]; !ok {
			continue
		}
		var match bool
		switch kind {
		case KindEVMAddress:
			match = strings.EqualFold(cur.Address, id)
		case KindSolanaAddress:
			match = cur.Address == id
		default:
			match = strings.EqualFold(cur.Symbol, id)
		}
		if match && cur.Address != "" && cur.Symbol != "" {
			return cur, true
		}
	}
	return provider.Currency{}, false
}

func currencyRecord(c provider.Currency) domain.TokenRecord {
	return market.Token{
		Symbol:   c.Symbol,
		Name:     c.Name,
		LogoURI:  c.LogoURI,
		ChainID:  c.ChainID,
		Decimals: c.Decimals,
		Address:  c.Address,
	}.Record()
}

func recordCurrency(rec domain.TokenRecord) provider.Currency {
	cur := provider.Currency{
		Symbol:   rec.Symbol,
		Name:     rec.Name,
		LogoURI:  rec.LogoURL,
		ChainID:  domain.FlexibleStr(domain.ProviderChainID(rec.ChainID)),
		Decimals: rec.Decimals,
		Address:  rec.ContractAddress,
	}
	if rec.Price.Valid {
		cur.PriceUSD = rec.Price.Decimal.String()
	}
	return cur
}
