package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/trade", Command{Handler: noop, Description: "Trade a token"})
	reg.RegisterCommand("/pay", Command{Handler: noop, Description: "Pay someone"})
	reg.RegisterCommand("/stats", Command{Handler: noop, Hidden: true, AdminOnly: true})
	reg.RegisterCommand("/trade", Command{Handler: noop, Description: "again"})
	reg.RegisterCommand("menu", Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/nodesc", Command{Handler: noop})

	if got := reg.Commands(); len(got) != 3 || got[0] != "/trade" || got[2] != "/stats" {
		t.Fatalf("Commands = %v", got)
	}
	menu := reg.MenuCommands()
	if len(menu) != 2 || menu[0].Text != "trade" || menu[1].Text != "pay" {
		t.Fatalf("MenuCommands = %+v", menu)
	}
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/trade", Command{Handler: noop, Description: "Trade"})
	for _, text := range []string{"/trade", "trade", "/trade@AcmeBot", "/trade PONKE"} {
		name, _, ok := reg.LookupCommand(text)
		if !ok || name != "/trade" {
			t.Fatalf("LookupCommand(%q) = %q, %v", text, name, ok)
		}
	}
	if _, _, ok := reg.LookupCommand("/nope"); ok {
		t.Fatal("unknown command matched")
	}
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("intent", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCallback("intent", noop); err == nil {
		t.Fatal("duplicate accepted")
	}
	if _, ok := reg.Callback("intent"); !ok {
		t.Fatal("callback missing")
	}
}
