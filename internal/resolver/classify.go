package resolver

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"

	"github.com/AcmeNiles/AcmeTradeBot/internal/market"
)

// Kind is the shape of a free-text token identifier.
type Kind int

const (
	KindSymbol Kind = iota
	KindEVMAddress
	KindSolanaAddress
)

func (k Kind) String() string {
	switch k {
	case KindEVMAddress:
		return "evm_address"
	case KindSolanaAddress:
		return "solana_address"
	default:
		return "symbol"
	}
}

// ClassifyIdentifier decides which chains an identifier can live on.
func ClassifyIdentifier(s string) Kind {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") && common.IsHexAddress(s) {
		return KindEVMAddress
	}
	if n := len(s); n >= 32 && n <= 44 {
		// base58.Decode returns an empty slice on characters outside the alphabet
		if b := base58.Decode(s); len(b) == 32 {
			return KindSolanaAddress
		}
	}
	return KindSymbol
}

func chainsFor(kind Kind, chains *market.Chains) []market.Chain {
	switch kind {
	case KindEVMAddress:
		return chains.EVM()
	case KindSolanaAddress:
		return chains.Solana()
	default:
		return chains.All()
	}
}

// Limit splits ids into the first n entries and the overflow.
func Limit(ids []string, n int) (kept, skipped []string) {
	if n < 0 {
		n = 0
	}
	if len(ids) <= n {
		return ids, nil
	}
	return ids[:n], ids[n:]
}
