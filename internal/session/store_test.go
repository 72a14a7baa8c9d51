package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func authenticated(t *testing.T, tgID int64) domain.Authenticated {
	t.Helper()
	res, err := domain.NewAuthResult(domain.IdentityPayload{ProviderUserID: "u", APIKey: "k", TelegramID: domain.FlexibleInt(tgID)})
	if err != nil {
		t.Fatalf("NewAuthResult: %v", err)
	}
	return domain.Authenticated{Result: res}
}

func TestPutAuthPrecedence(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewMemory(WithClock(clk.now))
	ttl := time.Hour

	if s.PutAuth(1, domain.AuthFailed{Err: errors.New("x")}, ttl) {
		t.Fatal("AuthFailed must never be stored")
	}
	if _, ok := s.Get(1); ok {
		t.Fatal("AuthFailed created a session")
	}

	if !s.PutAuth(1, domain.LoginRequired{URL: "https://mint/1"}, ttl) {
		t.Fatal("LoginRequired on empty entry rejected")
	}
	if !s.PutAuth(1, domain.LoginRequired{URL: "https://mint/2"}, ttl) {
		t.Fatal("LoginRequired must refresh LoginRequired")
	}
	if !s.PutAuth(1, authenticated(t, 1), ttl) {
		t.Fatal("Authenticated must replace LoginRequired")
	}
	// a late claim response must not downgrade a completed login
	if s.PutAuth(1, domain.LoginRequired{URL: "https://mint/3"}, ttl) {
		t.Fatal("LoginRequired overwrote Authenticated")
	}
	if s.PutAuth(1, authenticated(t, 1), ttl) {
		t.Fatal("Authenticated overwrote live Authenticated")
	}
	got, _ := s.Get(1)
	if domain.AuthKind(got.Auth) != "authenticated" {
		t.Fatalf("auth = %s", domain.AuthKind(got.Auth))
	}

	clk.advance(ttl)
	if !s.PutAuth(1, domain.LoginRequired{URL: "https://mint/4"}, ttl) {
		t.Fatal("LoginRequired rejected after Authenticated expired")
	}
}

func TestLazyExpiryKeepsTransientState(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewMemory(WithClock(clk.now))

	s.PutAuth(7, authenticated(t, 7), time.Minute)
	s.Update(7, func(sess *Session) {
		sess.Turn.Intent = domain.IntentTrade
		sess.TopTokens = []domain.TokenRecord{{Symbol: "BRETT"}}
		sess.TopExpiresAt = clk.t.Add(2 * time.Minute)
	})

	clk.advance(time.Minute)
	got, ok := s.Get(7)
	if !ok {
		t.Fatal("session vanished")
	}
	if got.Auth != nil {
		t.Fatal("expired auth still present")
	}
	if len(got.TopTokens) != 1 || got.Turn.Intent != domain.IntentTrade {
		t.Fatalf("unexpired fields lost: %+v", got)
	}

	clk.advance(time.Minute)
	got, _ = s.Get(7)
	if got.TopTokens != nil {
		t.Fatal("expired top tokens still present")
	}
}

func TestClearTransientVersusLogout(t *testing.T) {
	s := NewMemory()
	s.PutAuth(3, authenticated(t, 3), time.Hour)
	s.Update(3, func(sess *Session) {
		sess.InviteLink = "https://t.me/+abc"
		sess.Turn = Turn{Intent: domain.IntentPay, Tokens: []string{"USDC"}, Receiver: "bob", Amount: decimal.NewNullDecimal(decimal.NewFromInt(5))}
	})

	s.ClearTransient(3)
	got, _ := s.Get(3)
	if !got.Turn.Empty() {
		t.Fatalf("turn not cleared: %+v", got.Turn)
	}
	if _, ok := got.Authenticated(); !ok || got.InviteLink == "" {
		t.Fatal("ClearTransient dropped persistent fields")
	}

	s.Logout(3)
	if _, ok := s.Get(3); ok {
		t.Fatal("Logout kept the session")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemory()
	s.Update(9, func(sess *Session) { sess.Turn.Tokens = []string{"A"} })
	got, _ := s.Get(9)
	got.Turn.Tokens[0] = "B"
	again, _ := s.Get(9)
	if again.Turn.Tokens[0] != "A" {
		t.Fatal("caller mutated stored session")
	}
}

func TestConcurrentUpdatesAreAtomic(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(1, func(sess *Session) {
				sess.Turn.Tokens = append(sess.Turn.Tokens, "X")
			})
		}()
	}
	wg.Wait()
	got, _ := s.Get(1)
	if len(got.Turn.Tokens) != 50 {
		t.Fatalf("tokens = %d, want 50", len(got.Turn.Tokens))
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}
