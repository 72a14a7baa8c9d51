// Package domain holds the conversation and identity types shared by the bot packages.
package domain

import "strings"

// Intent is the action requested for the current conversational turn.
type Intent string

const (
	IntentTrade   Intent = "trade"
	IntentPay     Intent = "pay"
	IntentRequest Intent = "request"
	IntentList    Intent = "list"
	IntentShare   Intent = "share"
	IntentTop3    Intent = "top3"
	IntentBuy     Intent = "buy"
	IntentVault   Intent = "vault"
	IntentMenu    Intent = "menu"
	IntentStart   Intent = "start"
	IntentLogout  Intent = "logout"
	IntentCancel  Intent = "cancel"
)

// Intents lists the whole vocabulary in menu order.
var Intents = []Intent{
	IntentTrade, IntentPay, IntentRequest, IntentList, IntentShare, IntentTop3,
	IntentBuy, IntentVault, IntentMenu, IntentStart, IntentLogout, IntentCancel,
}

// ParseIntent accepts "trade", "/trade" or "/trade@SomeBot".
func ParseIntent(s string) (Intent, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	s = strings.ToLower(s)
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return "", false
}

// MenuClass reports whether the intent bypasses authentication.
func (i Intent) MenuClass() bool {
	switch i {
	case IntentStart, IntentMenu, IntentCancel, IntentLogout:
		return true
	}
	return false
}

// Command returns the slash form used for Telegram commands and callback data.
func (i Intent) Command() string {
	return "/" + string(i)
}

// IntentSet is the configured subset of intents that require authentication.
type IntentSet map[Intent]struct{}

// NewIntentSet builds a set from names, silently skipping unknown entries.
func NewIntentSet(names []string) IntentSet {
	set := make(IntentSet, len(names))
	for _, n := range names {
		if in, ok := ParseIntent(n); ok {
			set[in] = struct{}{}
		}
	}
	return set
}

// Has reports membership.
func (s IntentSet) Has(i Intent) bool {
	_, ok := s[i]
	return ok
}
