// Package intent parses chat input and drives the per-user conversation.
package intent

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
)

// Parsed is one message split into conversation slots.
type Parsed struct {
	Intent domain.Intent
	// Unknown holds a slash command outside the vocabulary.
	Unknown  string
	Tokens   []string
	Receiver string
	Amount   decimal.NullDecimal

	words []string
}

// Empty reports whether the message carried nothing usable.
func (p Parsed) Empty() bool {
	return p.Intent == "" && p.Unknown == "" && len(p.Tokens) == 0 && p.Receiver == "" && !p.Amount.Valid
}

// Parse splits text on whitespace. The first /command is the intent, @name is
// the receiver, a number is the amount and every other word is a token
// identifier. "/start trade-PONKE" deep links expand to "/trade PONKE".
func Parse(text string) Parsed {
	var p Parsed
	seen := make(map[string]struct{})
	addToken := func(w string) {
		key := domain.TokenKey(w)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		p.Tokens = append(p.Tokens, key)
	}

	for _, w := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(w, "/"):
			if p.Intent != "" || p.Unknown != "" {
				continue
			}
			if in, ok := domain.ParseIntent(w); ok {
				p.Intent = in
			} else {
				p.Unknown = w
			}
		case strings.HasPrefix(w, "@") && len(w) > 1:
			p.Receiver = strings.TrimPrefix(w, "@")
		default:
			if p.Intent == domain.IntentStart {
				if in, tok, ok := deepLink(w); ok {
					p.Intent = in
					if tok != "" {
						addToken(tok)
						p.words = append(p.words, tok)
					}
					continue
				}
				// other start payloads are referral codes
				continue
			}
			if amt, err := decimal.NewFromString(w); err == nil {
				p.Amount = decimal.NewNullDecimal(amt)
				continue
			}
			addToken(w)
			p.words = append(p.words, w)
		}
	}
	return p
}

// StartReferral returns the payload of "/start CODE" when CODE is not an
// intent deep link. The provider records it as the referrer.
func StartReferral(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	if in, ok := domain.ParseIntent(fields[0]); !ok || in != domain.IntentStart || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	if _, _, ok := deepLink(fields[1]); ok {
		return ""
	}
	return fields[1]
}

// deepLink reads a "/start" payload of the form intent-token.
func deepLink(payload string) (domain.Intent, string, bool) {
	name, tok, _ := strings.Cut(payload, "-")
	in, ok := domain.ParseIntent(name)
	if !ok || in.MenuClass() {
		return "", "", false
	}
	return in, strings.TrimSpace(tok), true
}

// Merge folds a parsed message into the pending turn. A new intent replaces
// the old one, filled slots overwrite, and tokens are unioned.
func Merge(turn session.Turn, p Parsed) session.Turn {
	if p.Intent != "" {
		turn.Intent = p.Intent
	}

	// a bare word typed while a receiver is pending is the username
	if turn.Awaiting == session.SlotReceiver && p.Intent == "" && p.Receiver == "" && len(p.words) == 1 {
		turn.Receiver = strings.TrimPrefix(p.words[0], "@")
		p.Tokens = nil
	}
	// anything but a number is ignored while an amount is pending
	if turn.Awaiting == session.SlotAmount && p.Intent == "" && !p.Amount.Valid {
		return turn
	}

	if p.Receiver != "" {
		turn.Receiver = p.Receiver
	}
	if p.Amount.Valid {
		turn.Amount = p.Amount
	}
	if len(p.Tokens) > 0 {
		turn.Tokens = unionTokens(turn.Tokens, p.Tokens)
	}
	return turn
}

func unionTokens(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			key := domain.TokenKey(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}
