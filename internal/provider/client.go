// Package provider talks to the Acme backend: identity claims, hosted
// trading and payment links, public profiles and the currency registry.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
)

const (
	pathClaim        = "telegram/intent/create-claim-loyalty-card-intent"
	pathTradingLink  = "intent/create-buy-purchase-link-intent"
	pathPayIntent    = "intent/create-pay-intent"
	pathProfile      = "checkout/user/get-public-profile"
	pathListedTokens = "checkout/intent/get-user-listed-tokens"
	pathCurrencies   = "currencies"
	pathRegister     = "telegram/currency/create-or-update-for-dex-aggregator"
	pathSetWebhook   = "user/set-web-hook"

	headerAPIKey   = "X-API-KEY"
	headerIdentity = "X-Secure-TG-User-Info"

	// DexAggregatorID tags currencies registered from aggregator lookups.
	DexAggregatorID = "LiFi"
)

var (
	// ErrProfileNotFound means the username has no provider account.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrEmptyLink means the provider answered 2xx without a usable link.
	ErrEmptyLink = errors.New("provider returned no link")
)

// Client is the provider API client.
type Client struct {
	rc       *remote.Client
	base     string
	appURL   string
	apiKey   string
	redirect string
	payTo    string
	claim    coreconfig.ClaimConfig
}

// New builds a client from normalized provider settings.
func New(cfg coreconfig.ProviderConfig, rc *remote.Client) *Client {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{
		rc:       rc,
		base:     base,
		appURL:   strings.TrimRight(cfg.AppURL, "/"),
		apiKey:   cfg.APIKey,
		redirect: cfg.RedirectURL,
		payTo:    cfg.PayTo,
		claim:    cfg.Claim,
	}
}

// BuyLink is the hosted page for an existing intent.
func (c *Client) BuyLink(intentID string) string {
	return c.appURL + "/buy/" + url.PathEscape(intentID)
}

func (c *Client) endpoint(path string) string { return c.base + path }

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, h http.Header, v any) error {
	resp, err := c.rc.Get(ctx, c.endpoint(path), q, h)
	if err != nil {
		return err
	}
	return remote.DecodeJSON(resp, v)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, h http.Header, v any) error {
	resp, err := c.rc.PostJSON(ctx, c.endpoint(path), body, h)
	if err != nil {
		return err
	}
	return remote.DecodeJSON(resp, v)
}

func (c *Client) header(key string) http.Header {
	h := http.Header{}
	h.Set(headerAPIKey, key)
	return h
}

type claimBody struct {
	ContractAddress string `json:"contractAddress"`
	ChainID         string `json:"chainId"`
	Name            string `json:"name"`
	ImageURI        string `json:"imageUri"`
	Description     string `json:"description"`
	WebsiteURL      string `json:"websiteUrl"`
}

// Claim asks the provider whether the sealed identity already holds an access pass.
func (c *Client) Claim(ctx context.Context, sealedIdentity string) (ClaimOutcome, error) {
	h := c.header(c.apiKey)
	h.Set(headerIdentity, sealedIdentity)
	resp, err := c.rc.PostJSON(ctx, c.endpoint(pathClaim), claimBody{
		ContractAddress: c.claim.ContractAddress,
		ChainID:         c.claim.ChainID,
		Name:            c.claim.Name,
		ImageURI:        c.claim.ImageURI,
		Description:     c.claim.Description,
		WebsiteURL:      c.claim.WebsiteURL,
	}, h)
	if err != nil {
		return nil, err
	}
	return DecodeClaim(resp.Body), nil
}

type tradingLinkBody struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	RedirectURL  string `json:"redirectUrl"`
	Memo         string `json:"memo"`
}

// TradingLink creates a purchase intent for a token and returns its hosted link.
func (c *Client) TradingLink(ctx context.Context, caller domain.Caller, chainID, address string) (string, error) {
	key := caller.APIKey(c.apiKey)
	memo, err := SignMemo(caller.Identity, key)
	if err != nil {
		return "", err
	}
	var out struct {
		Data string `json:"data"`
	}
	err = c.postJSON(ctx, pathTradingLink, tradingLinkBody{
		ChainID:      domain.ProviderChainID(chainID),
		TokenAddress: address,
		RedirectURL:  c.redirect,
		Memo:         memo,
	}, c.header(key), &out)
	if err != nil {
		return "", fmt.Errorf("trading link: %w", err)
	}
	if strings.TrimSpace(out.Data) == "" {
		return "", ErrEmptyLink
	}
	return out.Data, nil
}

// Payment describes a single-use pay intent.
type Payment struct {
	ChainID         string
	ContractAddress string
	To              string
	Amount          decimal.Decimal
}

type payBody struct {
	ChainID         string `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	IntentLimit     int    `json:"intentLimit"`
	RedirectURL     string `json:"redirectUrl"`
	Memo            string `json:"memo"`
}

// PaymentLink creates a pay intent and returns the hosted link for it.
func (c *Client) PaymentLink(ctx context.Context, caller domain.Caller, p Payment) (string, error) {
	if !p.Amount.IsPositive() {
		return "", fmt.Errorf("payment link: amount must be positive")
	}
	to := p.To
	if to == "" {
		to = c.payTo
	}
	key := caller.APIKey(c.apiKey)
	memo, err := SignMemo(caller.Identity, key)
	if err != nil {
		return "", err
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err = c.postJSON(ctx, pathPayIntent, payBody{
		ChainID:         domain.ProviderChainID(p.ChainID),
		ContractAddress: p.ContractAddress,
		To:              to,
		Amount:          p.Amount.String(),
		IntentLimit:     1,
		RedirectURL:     c.redirect,
		Memo:            memo,
	}, c.header(key), &out)
	if err != nil {
		return "", fmt.Errorf("payment link: %w", err)
	}
	if out.Data.ID == "" {
		return "", ErrEmptyLink
	}
	return c.BuyLink(out.Data.ID), nil
}

// Profile is a public provider account.
type Profile struct {
	ID            string `json:"id"`
	UserName      string `json:"userName"`
	WalletAddress string `json:"walletAddress"`
}

// PublicProfile looks a username up. A 404 or an empty body yields ErrProfileNotFound.
func (c *Client) PublicProfile(ctx context.Context, username string) (Profile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	var out struct {
		Data *Profile `json:"data"`
	}
	err := c.getJSON(ctx, pathProfile, url.Values{"userName": {username}}, nil, &out)
	if remote.IsNotFound(err) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("public profile: %w", err)
	}
	if out.Data == nil || out.Data.ID == "" {
		return Profile{}, ErrProfileNotFound
	}
	if out.Data.UserName == "" {
		out.Data.UserName = username
	}
	return *out.Data, nil
}

// ListedTokens returns the tokens a provider user has published intents for.
func (c *Client) ListedTokens(ctx context.Context, userID string) ([]domain.ListedToken, error) {
	var out struct {
		Data []domain.ListedToken `json:"data"`
	}
	err := c.getJSON(ctx, pathListedTokens, url.Values{"userId": {userID}}, nil, &out)
	if remote.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listed tokens: %w", err)
	}
	return out.Data, nil
}

// Currency is a registry entry.
type Currency struct {
	Symbol   string             `json:"symbol"`
	Name     string             `json:"name"`
	LogoURI  string             `json:"logoURI"`
	ChainID  domain.FlexibleStr `json:"chainId"`
	Decimals int                `json:"decimals"`
	Address  string             `json:"address"`
	PriceUSD string             `json:"priceUSD,omitempty"`
}

// Currencies fetches the whole provider registry.
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	var out struct {
		Data []Currency `json:"data"`
	}
	err := c.getJSON(ctx, pathCurrencies, nil, c.header(c.apiKey), &out)
	if err != nil {
		return nil, fmt.Errorf("currencies: %w", err)
	}
	return out.Data, nil
}

// RegisterCurrencies stores aggregator results so later lookups hit the registry.
func (c *Client) RegisterCurrencies(ctx context.Context, currencies []Currency) error {
	body := struct {
		DexAggregatorID string     `json:"dexAggregatorId"`
		Currencies      []Currency `json:"currencies"`
	}{DexAggregatorID, currencies}
	if _, err := c.rc.PostJSON(ctx, c.endpoint(pathRegister), body, c.header(c.apiKey)); err != nil {
		return fmt.Errorf("register currencies: %w", err)
	}
	logger.Debug(ctx, "provider", "currencies.registered", slog.Int("count", len(currencies)))
	return nil
}

// SetWebhook points provider order callbacks at hookURL.
func (c *Client) SetWebhook(ctx context.Context, hookURL string) error {
	body := map[string]string{"webHookUrl": hookURL}
	if _, err := c.rc.PostJSON(ctx, c.endpoint(pathSetWebhook), body, c.header(c.apiKey)); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
