package webhook

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
	"github.com/AcmeNiles/AcmeTradeBot/internal/orders"
)

const orderBody = `{"order":{"id":"o-1","status":"COMPLETED","createdAt":"2024-10-01T10:00:00Z","intentId":"i-1","userId":"u-1","encryptedUserData":"sealed"}}`

type fakeCompleter struct {
	calls int
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, enc string) (int64, domain.AuthResult, error) {
	f.calls++
	if f.err != nil {
		return 0, domain.AuthResult{}, f.err
	}
	res, err := domain.NewAuthResult(domain.IdentityPayload{ProviderUserID: "u-1", APIKey: "k", TelegramID: 42})
	return 42, res, err
}

type fakeNotifier struct{ delivered []Delivery }

func (f *fakeNotifier) Notify(_ context.Context, d Delivery) error {
	f.delivered = append(f.delivered, d)
	return nil
}

func post(t *testing.T, h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/acme", strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOrderCompletesAuthOnce(t *testing.T) {
	completer := &fakeCompleter{}
	notifier := &fakeNotifier{}
	ledger := orders.NewMemory()
	h := NewRouter(Options{Ledger: ledger, Correlator: IdentityCorrelator{Auth: completer}, Notifier: notifier})

	for i := 0; i < 2; i++ {
		if rec := post(t, h, orderBody, nil); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: code = %d", i, rec.Code)
		}
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("notified %d times, want 1", len(notifier.delivered))
	}
	d := notifier.delivered[0]
	if d.TelegramID != 42 || d.Auth == nil || d.Order.IntentID != "i-1" {
		t.Fatalf("delivery = %+v", d)
	}
	stored, err := ledger.Get(context.Background(), "o-1")
	if err != nil || !stored.TelegramID.Valid || stored.TelegramID.Int64 != 42 {
		t.Fatalf("ledger = %+v, %v", stored, err)
	}
}

func TestOrderMissingKeys(t *testing.T) {
	h := NewRouter(Options{Ledger: orders.NewMemory(), Correlator: IdentityCorrelator{Auth: &fakeCompleter{}}})
	for _, body := range []string{
		`{}`,
		`{"order":{"id":"o-1","status":"COMPLETED","createdAt":"x","intentId":"i-1"}}`,
		`not json`,
	} {
		if rec := post(t, h, body, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code = %d", body, rec.Code)
		}
	}
}

func TestOrderWithoutIdentity(t *testing.T) {
	completer := &fakeCompleter{}
	notifier := &fakeNotifier{}
	h := NewRouter(Options{Ledger: orders.NewMemory(), Correlator: IdentityCorrelator{Auth: completer}, Notifier: notifier})

	body := `{"order":{"id":"o-2","status":"PENDING","createdAt":"x","intentId":"i-1","userId":"u-1"}}`
	if rec := post(t, h, body, nil); rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if completer.calls != 0 || len(notifier.delivered) != 0 {
		t.Fatalf("calls = %d delivered = %d", completer.calls, len(notifier.delivered))
	}
}

func TestOrderUndecryptable(t *testing.T) {
	h := NewRouter(Options{Ledger: orders.NewMemory(), Correlator: IdentityCorrelator{Auth: &fakeCompleter{err: errors.New("decrypt")}}})
	if rec := post(t, h, orderBody, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestOrderSignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	v, err := ParseVerifier(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	if err != nil {
		t.Fatalf("ParseVerifier: %v", err)
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA512, signedDigest([]byte(orderBody)))
	if err != nil {
		t.Fatal(err)
	}
	good := base64.StdEncoding.EncodeToString(sig)

	h := NewRouter(Options{Ledger: orders.NewMemory(), Correlator: IdentityCorrelator{Auth: &fakeCompleter{}}, Verifier: v})
	if rec := post(t, h, orderBody, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned: code = %d", rec.Code)
	}
	tampered := strings.Replace(orderBody, "COMPLETED", "REFUNDED", 1)
	if rec := post(t, h, tampered, http.Header{"Acme-Signature": {good}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered: code = %d", rec.Code)
	}
	if rec := post(t, h, orderBody, http.Header{"Acme-Signature": {good}}); rec.Code != http.StatusOK {
		t.Fatalf("signed: code = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := NewRouter(Options{Ledger: orders.NewMemory(), Correlator: IdentityCorrelator{}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("ok")) {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
