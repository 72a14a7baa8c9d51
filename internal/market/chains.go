// Package market looks tokens up on the chain aggregator and fetches
// price data from the market API.
package market

import (
	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

// Chain is a supported network.
type Chain struct {
	ID       string
	Name     string
	Platform string
	EVM      bool
}

// Chains is the configured chain registry in config order.
type Chains struct {
	list []Chain
	byID map[string]Chain
}

// NewChains builds the registry. IDs are expected to be normalized.
func NewChains(cfg []coreconfig.Chain) *Chains {
	c := &Chains{byID: make(map[string]Chain, len(cfg))}
	for _, ch := range cfg {
		chain := Chain{ID: domain.CanonicalChainID(ch.ID), Name: ch.Name, Platform: ch.Platform, EVM: ch.EVM}
		if chain.ID == domain.SolanaChainID {
			chain.EVM = false
			if chain.Platform == "" {
				chain.Platform = "solana"
			}
		}
		c.list = append(c.list, chain)
		c.byID[chain.ID] = chain
	}
	return c
}

// All returns every chain.
func (c *Chains) All() []Chain { return append([]Chain(nil), c.list...) }

// EVM returns the EVM chains.
func (c *Chains) EVM() []Chain {
	return c.filter(func(ch Chain) bool { return ch.EVM })
}

// Solana returns the Solana chain, if configured.
func (c *Chains) Solana() []Chain {
	return c.filter(func(ch Chain) bool { return ch.ID == domain.SolanaChainID })
}

// Lookup finds a chain by id or by the "solana" alias.
func (c *Chains) Lookup(id string) (Chain, bool) {
	ch, ok := c.byID[domain.CanonicalChainID(id)]
	return ch, ok
}

func (c *Chains) filter(keep func(Chain) bool) []Chain {
	var out []Chain
	for _, ch := range c.list {
		if keep(ch) {
			out = append(out, ch)
		}
	}
	return out
}
