package market

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
)

// ErrNoQuote means the market API knows nothing about the contract.
var ErrNoQuote = errors.New("no market data")

// Quote is a USD market snapshot.
type Quote struct {
	Price     decimal.NullDecimal `json:"usd"`
	MarketCap decimal.NullDecimal `json:"usd_market_cap"`
	Volume24h decimal.NullDecimal `json:"usd_24h_vol"`
	Change24h decimal.NullDecimal `json:"usd_24h_change"`
}

// Quotes is the market data API client.
type Quotes struct {
	rc   *remote.Client
	base string
}

// NewQuotes returns a client rooted at baseURL (e.g. https://api.coingecko.com/api/v3).
func NewQuotes(rc *remote.Client, baseURL string) *Quotes {
	return &Quotes{rc: rc, base: strings.TrimRight(baseURL, "/")}
}

// Quote fetches price, market cap, volume and 24h change for one contract.
func (q *Quotes) Quote(ctx context.Context, platform, address string) (Quote, error) {
	if platform == "" {
		platform = "solana"
	}
	resp, err := q.rc.Get(ctx, q.base+"/simple/token_price/"+url.PathEscape(platform), url.Values{
		"contract_addresses":  {address},
		"vs_currencies":       {"usd"},
		"include_market_cap":  {"true"},
		"include_24hr_vol":    {"true"},
		"include_24hr_change": {"true"},
	}, nil)
	if err != nil {
		return Quote{}, err
	}
	var out map[string]Quote
	if err := resp.JSON(&out); err != nil {
		return Quote{}, err
	}
	// keys come back lower-cased for EVM contracts
	if quote, ok := out[address]; ok {
		return quote, nil
	}
	if quote, ok := out[strings.ToLower(address)]; ok {
		return quote, nil
	}
	for _, quote := range out {
		return quote, nil
	}
	return Quote{}, ErrNoQuote
}
