package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	coreconfig "github.com/AcmeNiles/AcmeTradeBot/core/config"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/remote"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := coreconfig.ProviderConfig{
		BaseURL:     srv.URL + "/operations",
		AppURL:      "https://app.acme.test/",
		APIKey:      "default-key",
		RedirectURL: "https://t.me/acmebot",
		PayTo:       "0x5f7e82d3c06bD1a244461febf56D3d8976B5b581",
		Claim:       coreconfig.ClaimConfig{ContractAddress: "0xC4F7", ChainID: "137", Name: "Telegram User"},
	}
	return New(cfg, remote.New(remote.Options{Attempts: 1, Timeout: time.Second}))
}

func TestClaimSendsSealedIdentityHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations/"+pathClaim {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get(headerIdentity) != "n:t:c" || r.Header.Get(headerAPIKey) != "default-key" {
			t.Errorf("headers = %v", r.Header)
		}
		var body claimBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ChainID != "137" || body.Name != "Telegram User" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"data":"https://mint.acme.test/claim/1"}`))
	})
	out, err := c.Claim(context.Background(), "n:t:c")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if link, ok := out.(ClaimLink); !ok || link.URL != "https://mint.acme.test/claim/1" {
		t.Fatalf("outcome = %#v", out)
	}
}

func TestTradingLinkSignsMemoWithCallerKey(t *testing.T) {
	res, err := domain.NewAuthResult(domain.IdentityPayload{ProviderUserID: "u", APIKey: "user-key", TelegramID: 5})
	if err != nil {
		t.Fatal(err)
	}
	caller := domain.Caller{Identity: domain.Identity{UserID: 5, Username: "alice"}, Auth: &res}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerAPIKey) != "user-key" {
			t.Errorf("api key = %s", r.Header.Get(headerAPIKey))
		}
		var body tradingLinkBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.ChainID != "solana" {
			t.Errorf("chain = %s", body.ChainID)
		}
		id, err := parseMemo(body.Memo, "user-key")
		if err != nil || id.Username != "alice" {
			t.Errorf("memo = %v %+v", err, id)
		}
		_, _ = w.Write([]byte(`{"data":"https://app.acme.test/buy/abc"}`))
	})
	link, err := c.TradingLink(context.Background(), caller, domain.SolanaChainID, "5z3EqYQo9HiCEs3R84RCDMu2n7anpDMxRhdK8PSWmrRC")
	if err != nil || link != "https://app.acme.test/buy/abc" {
		t.Fatalf("TradingLink = %q, %v", link, err)
	}
}

func TestPaymentLinkBuildsBuyURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body payBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Amount != "12.5" || body.IntentLimit != 1 || !strings.HasPrefix(body.To, "0x5f7e") {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"pay-9"}}`))
	})
	link, err := c.PaymentLink(context.Background(), domain.Caller{}, Payment{
		ChainID: "42161", ContractAddress: "0xaf88", Amount: decimal.RequireFromString("12.5"),
	})
	if err != nil || link != "https://app.acme.test/buy/pay-9" {
		t.Fatalf("PaymentLink = %q, %v", link, err)
	}

	if _, err := c.PaymentLink(context.Background(), domain.Caller{}, Payment{Amount: decimal.Zero}); err == nil {
		t.Fatal("zero amount accepted")
	}
}

func TestPublicProfileNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("userName") {
		case "ghost":
			http.NotFound(w, r)
		case "empty":
			_, _ = w.Write([]byte(`{"data":null}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"id":"u-2","userName":"bob"}}`))
		}
	})
	ctx := context.Background()
	for _, name := range []string{"ghost", "@empty"} {
		if _, err := c.PublicProfile(ctx, name); !errors.Is(err, ErrProfileNotFound) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
	p, err := c.PublicProfile(ctx, "@bob")
	if err != nil || p.ID != "u-2" {
		t.Fatalf("PublicProfile = %+v, %v", p, err)
	}
}

func TestListedTokensDecodesNumericChain(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"intentId":"i1","chainId":8453,"tokenAddress":"0x532f"},{"intentId":"i2","chainId":"solana","tokenAddress":"5z3E"}]}`))
	})
	got, err := c.ListedTokens(context.Background(), "u-2")
	if err != nil || len(got) != 2 {
		t.Fatalf("ListedTokens = %v, %v", got, err)
	}
	if got[0].ChainID != "8453" || !got[1].Matches(domain.SolanaChainID, "5z3E") {
		t.Fatalf("tokens = %+v", got)
	}
}
