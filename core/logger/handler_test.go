package logger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"log/slog"
)

func emit(t *testing.T, format logFormat, ctx context.Context, component, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	LogEvent(ctx, slog.New(handler).With("component", component), slog.LevelInfo, event, attrs...)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := emit(t, formatKV, ctx, "intent", "turn.routed",
		slog.String("status", "ok"),
		slog.String("intent", "trade"),
	)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=intent", "event=turn.routed", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "intent=trade"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-json")
	line := emit(t, formatJSON, ctx, "provider", "claim.failed",
		slog.String("status", "FAIL"),
		slog.String("err", "boom"),
	)
	prefixes := []string{`{"ts":`, `"level":"INFO"`, `"component":"provider"`, `"event":"claim.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	raw := "123:456:789"
	kv := emit(t, formatKV, WithRID(Background(), raw), "app", "rid.test")
	if !strings.Contains(kv, "rid="+CompactRID(raw)) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := emit(t, formatJSON, WithRID(Background(), raw), "app", "rid.test")
	if !strings.Contains(js, `"rid_full":"`+raw+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", js)
	}
}

func TestStructuredHandlerRedactsSecrets(t *testing.T) {
	line := emit(t, formatKV, Background(), "auth", "claim.sent",
		slog.String("api_key", "sk-live-123"),
		slog.String("envelope", "aa:bb:cc"),
		slog.Group("req", slog.String("memo", "eyJhbGciOi")),
		slog.String("token", "PONKE"),
	)
	for _, secret := range []string{"sk-live-123", "aa:bb:cc", "eyJhbGciOi"} {
		if strings.Contains(line, secret) {
			t.Fatalf("secret %q leaked: %s", secret, line)
		}
	}
	if !strings.Contains(line, "api_key=[redacted]") || !strings.Contains(line, "req.memo=[redacted]") {
		t.Fatalf("expected redaction markers, got %s", line)
	}
	if !strings.Contains(line, "token=PONKE") {
		t.Fatalf("token symbol should not be redacted: %s", line)
	}
}

func TestStructuredHandlerDurationAndOutcome(t *testing.T) {
	line := emit(t, formatKV, Background(), "remote", "call.done",
		slog.Duration("duration", 1500000),
		slog.String("outcome", "login_required"),
		slog.String("cache", "bogus"),
	)
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected duration_ms, got %s", line)
	}
	if !strings.Contains(line, "outcome=login_required") {
		t.Fatalf("expected outcome kept, got %s", line)
	}
	if strings.Contains(line, "cache=") {
		t.Fatalf("unknown cache value must be dropped, got %s", line)
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID("35:36:71"); got != "z.10.1z" {
		t.Fatalf("CompactRID = %s", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID changed foreign input: %s", got)
	}
}
