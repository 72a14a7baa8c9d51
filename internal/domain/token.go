package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SolanaChainID is the numeric Solana id used by the chain aggregator.
const SolanaChainID = "1151111081099710"

// ProviderChainID translates the Solana sentinel into the literal the provider expects.
func ProviderChainID(chainID string) string {
	if chainID == SolanaChainID {
		return "solana"
	}
	return chainID
}

// CanonicalChainID is the inverse of ProviderChainID.
func CanonicalChainID(chainID string) string {
	if strings.EqualFold(strings.TrimSpace(chainID), "solana") {
		return SolanaChainID
	}
	return strings.TrimSpace(chainID)
}

// ListedToken is a token a provider user has published a trading intent for.
type ListedToken struct {
	IntentID     string      `json:"intentId"`
	ChainID      FlexibleStr `json:"chainId"`
	TokenAddress string      `json:"tokenAddress"`
}

// Matches compares chain and address; EVM addresses compare case-insensitively.
func (t ListedToken) Matches(chainID, address string) bool {
	if CanonicalChainID(string(t.ChainID)) != CanonicalChainID(chainID) {
		return false
	}
	return sameAddress(t.TokenAddress, address)
}

func sameAddress(a, b string) bool {
	if strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X") {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// TokenRecord is a resolved, tradable asset.
type TokenRecord struct {
	Symbol          string
	Name            string
	LogoURL         string
	ChainID         string
	Decimals        int
	ContractAddress string
	TradingLink     string
	IntentID        string

	Price     decimal.NullDecimal
	Change24h decimal.NullDecimal
	MarketCap decimal.NullDecimal
	Volume24h decimal.NullDecimal
}

// Valid reports whether the record is usable downstream.
func (t TokenRecord) Valid() bool {
	return t.ChainID != "" && t.ContractAddress != "" && t.TradingLink != ""
}

// Key is the identity used to deduplicate tokens.
func (t TokenRecord) Key() string {
	return TokenKey(t.Symbol)
}

// SameAsset reports whether both records point at the same contract.
func (t TokenRecord) SameAsset(o TokenRecord) bool {
	return CanonicalChainID(t.ChainID) == CanonicalChainID(o.ChainID) && sameAddress(t.ContractAddress, o.ContractAddress)
}

// TokenKey normalizes a free-text token identifier. Symbols are upper-cased,
// addresses keep their case because base58 is case-sensitive.
func TokenKey(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") || len(s) >= 32 {
		return s
	}
	return strings.ToUpper(s)
}

// InvalidToken is a requested identifier that could not be turned into a valid record.
type InvalidToken struct {
	Query  string
	Reason string
}

// Receiver is a counterpart provider user.
type Receiver struct {
	Username      string
	UserID        string
	WalletAddress string
}

// FlexibleStr decodes JSON strings and numbers into a string.
type FlexibleStr string

// UnmarshalJSON accepts "8453" and 8453.
func (f *FlexibleStr) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = FlexibleStr(s)
	return nil
}
