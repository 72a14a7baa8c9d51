package intent

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
)

func TestParse(t *testing.T) {
	p := Parse("/trade@AcmeTradeBot ponke @bob 12.5 brett PONKE")
	if p.Intent != domain.IntentTrade {
		t.Fatalf("intent = %q", p.Intent)
	}
	if p.Receiver != "bob" {
		t.Fatalf("receiver = %q", p.Receiver)
	}
	if !p.Amount.Valid || !p.Amount.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("amount = %v", p.Amount)
	}
	if want := []string{"PONKE", "BRETT"}; !reflect.DeepEqual(p.Tokens, want) {
		t.Fatalf("tokens = %v, want %v", p.Tokens, want)
	}
}

func TestParseKeepsAddressCase(t *testing.T) {
	addr := "5z3EqYQo9HiCEs3R84RCDMu2n7anpDMxRhdK8PSWmrRC"
	p := Parse("/list " + addr)
	if len(p.Tokens) != 1 || p.Tokens[0] != addr {
		t.Fatalf("tokens = %v", p.Tokens)
	}
}

func TestParseCommands(t *testing.T) {
	cases := []struct {
		in      string
		intent  domain.Intent
		unknown string
		tokens  []string
	}{
		{in: "/start trade-PONKE", intent: domain.IntentTrade, tokens: []string{"PONKE"}},
		{in: "/start ref-1234", intent: domain.IntentStart},
		{in: "/start", intent: domain.IntentStart},
		{in: "/moon PONKE", unknown: "/moon", tokens: []string{"PONKE"}},
		{in: "/pay /trade usdc", intent: domain.IntentPay, tokens: []string{"USDC"}},
	}
	for _, tc := range cases {
		p := Parse(tc.in)
		if p.Intent != tc.intent || p.Unknown != tc.unknown || !reflect.DeepEqual(p.Tokens, tc.tokens) {
			t.Fatalf("Parse(%q) = %+v", tc.in, p)
		}
	}
	if !Parse("   ").Empty() {
		t.Fatal("blank text should parse empty")
	}
}

func TestMerge(t *testing.T) {
	turn := session.Turn{Intent: domain.IntentTrade, Tokens: []string{"PONKE"}}
	turn = Merge(turn, Parse("ponke brett"))
	if turn.Intent != domain.IntentTrade || !reflect.DeepEqual(turn.Tokens, []string{"PONKE", "BRETT"}) {
		t.Fatalf("turn = %+v", turn)
	}

	turn = Merge(turn, Parse("/list usdc"))
	if turn.Intent != domain.IntentList || len(turn.Tokens) != 3 {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestMergeAwaitingSlots(t *testing.T) {
	turn := session.Turn{Intent: domain.IntentPay, Tokens: []string{"USDC"}, Awaiting: session.SlotReceiver}
	turn = Merge(turn, Parse("Bob"))
	if turn.Receiver != "Bob" || len(turn.Tokens) != 1 {
		t.Fatalf("receiver slot: %+v", turn)
	}

	turn.Awaiting = session.SlotAmount
	turn = Merge(turn, Parse("lots"))
	if turn.Amount.Valid || len(turn.Tokens) != 1 {
		t.Fatalf("non-numeric amount leaked: %+v", turn)
	}
	turn = Merge(turn, Parse("3"))
	if !turn.Amount.Valid || turn.Amount.Decimal.IntPart() != 3 {
		t.Fatalf("amount slot: %+v", turn)
	}
}

func TestStartReferral(t *testing.T) {
	cases := map[string]string{
		"/start ref42":       "ref42",
		"/start trade-PONKE": "",
		"/start":             "",
		"/trade ref42":       "",
		"start ref42":        "",
	}
	for text, want := range cases {
		if got := StartReferral(text); got != want {
			t.Fatalf("StartReferral(%q) = %q, want %q", text, got, want)
		}
	}
}
