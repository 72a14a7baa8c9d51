package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
)

var (
	// ErrTokenNotFound is a lookup the aggregator answered with a 4xx.
	ErrTokenNotFound = errors.New("token not found")
	// ErrIncompleteToken is a 2xx lookup missing a required field.
	ErrIncompleteToken = errors.New("token data incomplete")
)

// Token is an aggregator lookup result.
type Token struct {
	Symbol   string              `json:"symbol"`
	Name     string              `json:"name"`
	LogoURI  string              `json:"logoURI"`
	ChainID  domain.FlexibleStr  `json:"chainId"`
	Decimals int                 `json:"decimals"`
	Address  string              `json:"address"`
	PriceUSD decimal.NullDecimal `json:"priceUSD"`
}

// Complete reports whether every field but the price is present.
func (t Token) Complete() bool {
	return t.Symbol != "" && t.Name != "" && t.LogoURI != "" && t.ChainID != "" && t.Decimals > 0 && t.Address != ""
}

// Record converts the lookup into a token record without a trading link.
func (t Token) Record() domain.TokenRecord {
	return domain.TokenRecord{
		Symbol:          strings.ToUpper(t.Symbol),
		Name:            t.Name,
		LogoURL:         t.LogoURI,
		ChainID:         domain.CanonicalChainID(string(t.ChainID)),
		Decimals:        t.Decimals,
		ContractAddress: t.Address,
		Price:           t.PriceUSD,
	}
}

// Aggregator is the chain aggregation API client.
type Aggregator struct {
	rc   *remote.Client
	base string
}

// NewAggregator returns a client rooted at baseURL (e.g. https://li.quest/v1).
func NewAggregator(rc *remote.Client, baseURL string) *Aggregator {
	return &Aggregator{rc: rc, base: strings.TrimRight(baseURL, "/")}
}

// Token looks query (symbol or address) up on one chain.
func (a *Aggregator) Token(ctx context.Context, chainID, query string) (Token, error) {
	resp, err := a.rc.Get(ctx, a.base+"/token", url.Values{"chain": {chainID}, "token": {query}}, nil)
	if err != nil {
		if code := remote.StatusCode(err); code >= 400 && code < 500 {
			return Token{}, fmt.Errorf("%w: %s on %s", ErrTokenNotFound, query, chainID)
		}
		return Token{}, err
	}
	var tok Token
	if err := resp.JSON(&tok); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrIncompleteToken, err)
	}
	if !tok.Complete() {
		return Token{}, fmt.Errorf("%w: %s on %s", ErrIncompleteToken, query, chainID)
	}
	return tok, nil
}
