package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		cb      *tele.Callback
		key     string
		payload string
	}{
		{nil, "", ""},
		{&tele.Callback{Data: "\fintent|/trade PONKE"}, "intent", "/trade PONKE"},
		{&tele.Callback{Data: "\fstats"}, "stats", ""},
		{&tele.Callback{Unique: "intent", Data: "/pay @bob"}, "intent", "/pay @bob"},
		{&tele.Callback{Unique: "intent", Data: "\fintent|/menu"}, "intent", "/menu"},
	}
	for _, tc := range cases {
		key, payload := Parse(tc.cb)
		if key != tc.key || payload != tc.payload {
			t.Fatalf("Parse(%+v) = %q, %q; want %q, %q", tc.cb, key, payload, tc.key, tc.payload)
		}
	}
}
