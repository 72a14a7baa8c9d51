package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"
	"github.com/AcmeNiles/AcmeTradeBot/internal/intent"

	tele "gopkg.in/telebot.v4"
)

type fakeConv struct{ updates []intent.Update }

func (f *fakeConv) Handle(_ context.Context, u intent.Update) error {
	f.updates = append(f.updates, u)
	return nil
}

func messageContext(t *testing.T, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 7, Username: "alice", FirstName: "Alice"},
			Chat:   &tele.Chat{ID: 70, Type: tele.ChatPrivate},
		},
	})
}

func TestCommandsReachRouterWithFullText(t *testing.T) {
	reg := tg.NewRegistry()
	conv := &fakeConv{}
	if err := registerHandlers(reg, conv, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, cmd, ok := reg.LookupCommand("/trade PONKE")
	if !ok {
		t.Fatal("/trade not registered")
	}
	if err := cmd.Handler(messageContext(t, "/trade PONKE")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(conv.updates) != 1 {
		t.Fatalf("updates = %d", len(conv.updates))
	}
	u := conv.updates[0]
	if u.Text != "/trade PONKE" || u.Identity.UserID != 7 || u.Identity.ChatID != 70 || u.Identity.Username != "alice" {
		t.Fatalf("update = %+v", u)
	}
	if len(reg.Commands()) != len(commandDescriptions) {
		t.Fatalf("commands = %v", reg.Commands())
	}
}

func TestTextFallbackAndReferral(t *testing.T) {
	reg := tg.NewRegistry()
	conv := &fakeConv{}
	if err := registerHandlers(reg, conv, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.TextFallback()(messageContext(t, "PONKE")); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	_, start, _ := reg.LookupCommand("/start")
	if err := start.Handler(messageContext(t, "/start ref42")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.updates[0].Text != "PONKE" || conv.updates[0].Identity.ReferrerID != "" {
		t.Fatalf("fallback update = %+v", conv.updates[0])
	}
	if conv.updates[1].Identity.ReferrerID != "ref42" {
		t.Fatalf("referrer = %q", conv.updates[1].Identity.ReferrerID)
	}
}

type fakeStats struct{ ordersErr error }

func (fakeStats) Sessions() int { return 3 }

func (f fakeStats) Orders(context.Context) (int, error) { return 5, f.ordersErr }

func (fakeStats) Sent() uint64 { return 10 }

func (fakeStats) SendErrors() uint64 { return 1 }

func TestStatsHandler(t *testing.T) {
	var got string
	send := func(_ tele.Context, text string) error { got = text; return nil }

	if err := statsHandler(fakeStats{}, send)(messageContext(t, "/stats")); err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Sessions: 3", "Orders: 5", "Sent: 10, errors: 1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats missing %q:\n%s", want, got)
		}
	}

	_ = statsHandler(fakeStats{ordersErr: errors.New("down")}, send)(messageContext(t, "/stats"))
	if !strings.Contains(got, "Orders: N/A") {
		t.Fatalf("stats = %q", got)
	}
}
