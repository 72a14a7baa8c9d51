// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits Telebot's "\f<unique>|<payload>" encoding. cb.Unique wins when
// Telebot already matched an endpoint.
func Parse(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, rest, found := strings.Cut(raw, "|")
	if cb.Unique != "" {
		if found && strings.TrimSpace(key) == cb.Unique {
			return cb.Unique, rest
		}
		return cb.Unique, cb.Data
	}
	if !found {
		return strings.TrimSpace(key), ""
	}
	return strings.TrimSpace(key), rest
}

// Payload returns the data after "|" of the current callback.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}
