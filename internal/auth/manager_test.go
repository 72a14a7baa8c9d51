package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/envelope"
	"github.com/AcmeNiles/AcmeTradeBot/internal/provider"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
	"github.com/AcmeNiles/AcmeTradeBot/internal/session"
)

const testKey = "e4d3638ac94cf85b55f86d52ff72591651fe6bc9f0dbae563d99043adbd0e32f"

type fakeClaimer struct {
	calls   atomic.Int32
	respond func(sealed string) (provider.ClaimOutcome, error)
}

func (f *fakeClaimer) Claim(_ context.Context, sealed string) (provider.ClaimOutcome, error) {
	f.calls.Add(1)
	return f.respond(sealed)
}

func newManager(t *testing.T, claimer Claimer) (*Manager, *session.Memory, *envelope.Cipher) {
	t.Helper()
	env, err := envelope.New(testKey)
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	store := session.NewMemory()
	m := New(Options{Store: store, Provider: claimer, Envelope: env, TTL: time.Hour, CallbackURL: "https://bot.test/acme"})
	return m, store, env
}

func sealIdentity(t *testing.T, env *envelope.Cipher, tgID int64) string {
	t.Helper()
	s, err := env.Seal(domain.IdentityPayload{ProviderUserID: "u-1", APIKey: "key-1", TelegramID: domain.FlexibleInt(tgID)})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return s
}

func TestCachedAuthIssuesNoNetworkCall(t *testing.T) {
	claimer := &fakeClaimer{}
	m, _, env := newManager(t, claimer)
	claimer.respond = func(sealed string) (provider.ClaimOutcome, error) {
		var id domain.Identity
		if err := env.Open(sealed, &id); err != nil {
			t.Errorf("claim header does not open: %v", err)
		}
		if id.WebhookURL != "https://bot.test/acme" {
			t.Errorf("webhook url = %q", id.WebhookURL)
		}
		return provider.ClaimSealed{EncryptedUserData: sealIdentity(t, env, 42)}, nil
	}

	caller := domain.Identity{UserID: 42, Username: "alice"}
	if _, ok := m.IsAuthenticated(context.Background(), caller).(domain.Authenticated); !ok {
		t.Fatal("first call not authenticated")
	}
	if _, ok := m.IsAuthenticated(context.Background(), caller).(domain.Authenticated); !ok {
		t.Fatal("second call not authenticated")
	}
	if n := claimer.calls.Load(); n != 1 {
		t.Fatalf("claim calls = %d, want 1", n)
	}
}

func TestLoginRequiredIsCachedButRechecked(t *testing.T) {
	claimer := &fakeClaimer{respond: func(string) (provider.ClaimOutcome, error) {
		return provider.ClaimLink{URL: "https://mint.test/1"}, nil
	}}
	m, store, _ := newManager(t, claimer)

	state := m.IsAuthenticated(context.Background(), domain.Identity{UserID: 7})
	if lr, ok := state.(domain.LoginRequired); !ok || lr.URL != "https://mint.test/1" {
		t.Fatalf("state = %#v", state)
	}
	sess, _ := store.Get(7)
	if domain.AuthKind(sess.Auth) != "login_required" {
		t.Fatalf("stored = %s", domain.AuthKind(sess.Auth))
	}
	m.IsAuthenticated(context.Background(), domain.Identity{UserID: 7})
	if claimer.calls.Load() != 2 {
		t.Fatal("LoginRequired must not short-circuit the claim")
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	outage := &remote.UnavailableError{Attempts: 3, Err: context.DeadlineExceeded}
	cases := map[string]func(env *envelope.Cipher) (provider.ClaimOutcome, error){
		"outage":     func(*envelope.Cipher) (provider.ClaimOutcome, error) { return nil, outage },
		"malformed":  func(*envelope.Cipher) (provider.ClaimOutcome, error) { return provider.ClaimMalformed{Reason: "x"}, nil },
		"bad cipher": func(*envelope.Cipher) (provider.ClaimOutcome, error) { return provider.ClaimSealed{EncryptedUserData: "aa:bb:cc"}, nil },
		"incomplete": func(env *envelope.Cipher) (provider.ClaimOutcome, error) {
			s, _ := env.Seal(domain.IdentityPayload{ProviderUserID: "u", TelegramID: 9})
			return provider.ClaimSealed{EncryptedUserData: s}, nil
		},
		"other user": func(env *envelope.Cipher) (provider.ClaimOutcome, error) {
			s, _ := env.Seal(domain.IdentityPayload{ProviderUserID: "u", APIKey: "k", TelegramID: 10})
			return provider.ClaimSealed{EncryptedUserData: s}, nil
		},
	}
	for name, respond := range cases {
		claimer := &fakeClaimer{}
		m, store, env := newManager(t, claimer)
		claimer.respond = func(string) (provider.ClaimOutcome, error) { return respond(env) }

		state := m.IsAuthenticated(context.Background(), domain.Identity{UserID: 9})
		failed, ok := state.(domain.AuthFailed)
		if !ok {
			t.Fatalf("%s: state = %#v", name, state)
		}
		if name == "outage" && !errors.Is(failed.Err, remote.ErrUnavailable) {
			t.Fatalf("outage err = %v", failed.Err)
		}
		if _, ok := store.Get(9); ok {
			t.Fatalf("%s: failure was cached", name)
		}
	}
}

func TestWebhookCompletionWinsOverLateLoginLink(t *testing.T) {
	claimer := &fakeClaimer{}
	m, store, env := newManager(t, claimer)

	// webhook arrives while the direct claim is still waiting on the provider
	claimer.respond = func(string) (provider.ClaimOutcome, error) {
		if _, _, err := m.Complete(context.Background(), sealIdentity(t, env, 5)); err != nil {
			t.Errorf("Complete: %v", err)
		}
		return provider.ClaimLink{URL: "https://mint.test/late"}, nil
	}

	state := m.IsAuthenticated(context.Background(), domain.Identity{UserID: 5})
	if _, ok := state.(domain.Authenticated); !ok {
		t.Fatalf("state = %#v, want Authenticated", state)
	}
	sess, _ := store.Get(5)
	if _, ok := sess.Authenticated(); !ok {
		t.Fatal("late LoginRequired overwrote webhook result")
	}
}

func TestCompleteStoresForDecryptedUser(t *testing.T) {
	m, store, env := newManager(t, &fakeClaimer{})
	store.PutAuth(77, domain.LoginRequired{URL: "https://mint.test/x"}, time.Hour)

	userID, res, err := m.Complete(context.Background(), sealIdentity(t, env, 77))
	if err != nil || userID != 77 || res.APIKey() != "key-1" {
		t.Fatalf("Complete = %d %+v %v", userID, res, err)
	}
	sess, _ := store.Get(77)
	if _, ok := sess.Authenticated(); !ok {
		t.Fatal("webhook result not stored")
	}

	if _, _, err := m.Complete(context.Background(), "garbage"); !errors.Is(err, envelope.ErrDecrypt) {
		t.Fatalf("garbage err = %v", err)
	}

	m.Logout(context.Background(), 77)
	if _, ok := store.Get(77); ok {
		t.Fatal("Logout kept the session")
	}
}
