package middleware

import (
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, userID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func TestLimiter(t *testing.T) {
	l := &limiter{interval: time.Second, last: make(map[int64]time.Time)}
	now := time.Unix(1_700_000_000, 0)
	if !l.allow(1, now) {
		t.Fatal("first update limited")
	}
	if l.allow(1, now.Add(500*time.Millisecond)) {
		t.Fatal("burst allowed")
	}
	if !l.allow(2, now.Add(500*time.Millisecond)) {
		t.Fatal("other user limited")
	}
	if !l.allow(1, now.Add(2*time.Second)) {
		t.Fatal("update after interval limited")
	}
}

func TestRateLimitExcludes(t *testing.T) {
	calls, limited := 0, 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { calls++; return nil })
	c := newContext(t, 7, "/trade")
	_ = h(c)
	_ = h(c)
	if calls != 1 || limited != 1 {
		t.Fatalf("calls = %d limited = %d", calls, limited)
	}
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	h := AdminOnly(AdminOptions{AdminID: 1, OnReject: func(tele.Context) error { rejected++; return nil }})(
		func(tele.Context) error { return errors.New("ran") },
	)
	if err := h(newContext(t, 1, "/stats")); err == nil {
		t.Fatal("admin was rejected")
	}
	if err := h(newContext(t, 2, "/stats")); err != nil || rejected != 1 {
		t.Fatalf("non-admin: err = %v rejected = %d", err, rejected)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newContext(t, 1, "hi")); err == nil {
		t.Fatal("panic not converted to error")
	}
}

func TestMetricsCountsOnlyOnce(t *testing.T) {
	c := newContext(t, 1, "hi")
	h := MessageMetricsMiddleware(MessageMetricsMiddleware(func(c tele.Context) error {
		c.Set(keyMessages, 3)
		return nil
	}))
	_ = h(c)
	if n, kb := GetCounters(c); n != 3 || kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}
}
