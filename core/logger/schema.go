package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
	"duplicate":    {},
}

var allowedCache = map[string]struct{}{
	"hit":     {},
	"miss":    {},
	"refresh": {},
}

var allowedOutcome = map[string]struct{}{
	"ok":             {},
	"fail":           {},
	"cancelled":      {},
	"rate_limited":   {},
	"login_required": {},
	"prompt":         {},
}

// defaultRedacted lists attribute keys that carry credentials or sealed payloads.
var defaultRedacted = []string{
	"api_key",
	"envelope",
	"encrypted_user_data",
	"memo",
	"bot_token",
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(set map[string]struct{}, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	_, ok := set[v]
	return v, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"request_id",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"intent",
	"state",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"cache",
	"payload",
	"token",
	"tokens",
	"receiver",
	"chain_id",
	"address",
	"order_id",
	"order_status",
	"method",
	"url",
	"http_code",
	"attempt",
	"attempts",
	"count",
	"skipped",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"backoff_ms",
}
