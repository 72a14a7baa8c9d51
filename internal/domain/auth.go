package domain

import (
	"errors"
	"strconv"
	"strings"
)

// ErrIncompleteIdentity is returned when a decrypted identity misses a core id.
var ErrIncompleteIdentity = errors.New("identity is missing provider user id, api key or telegram id")

// IdentityPayload is the wire shape of the decrypted encryptedUserData blob.
type IdentityPayload struct {
	ProviderUserID    string        `json:"userId"`
	APIKey            string        `json:"apiKey"`
	TelegramID        FlexibleInt   `json:"telegramId"`
	TelegramUsername  string        `json:"telegramUsername"`
	TelegramFirstName string        `json:"telegramFirstName"`
	TelegramLastName  string        `json:"telegramLastName"`
	ProfileImageURL   string        `json:"profileImageUrl"`
	LanguageCode      string        `json:"languageCode"`
	ChatID            FlexibleInt   `json:"chatId"`
	ReferrerID        string        `json:"referrerId,omitempty"`
	WebhookURL        string        `json:"webhookUrl,omitempty"`
	Tokens            []ListedToken `json:"tokens,omitempty"`
}

// AuthResult is a completed identity claim. Values are only produced by
// NewAuthResult so the three core ids are always present.
type AuthResult struct {
	providerUserID string
	apiKey         string
	telegramID     int64

	TelegramUsername  string
	TelegramFirstName string
	TelegramLastName  string
	ProfileImageURL   string
	LanguageCode      string
	ChatID            int64
	ReferrerID        string
	WebhookURL        string
	Tokens            []ListedToken
}

// NewAuthResult validates p and builds an AuthResult.
func NewAuthResult(p IdentityPayload) (AuthResult, error) {
	uid := strings.TrimSpace(p.ProviderUserID)
	key := strings.TrimSpace(p.APIKey)
	if uid == "" || key == "" || p.TelegramID == 0 {
		return AuthResult{}, ErrIncompleteIdentity
	}
	return AuthResult{
		providerUserID:    uid,
		apiKey:            key,
		telegramID:        int64(p.TelegramID),
		TelegramUsername:  strings.TrimPrefix(strings.TrimSpace(p.TelegramUsername), "@"),
		TelegramFirstName: p.TelegramFirstName,
		TelegramLastName:  p.TelegramLastName,
		ProfileImageURL:   p.ProfileImageURL,
		LanguageCode:      p.LanguageCode,
		ChatID:            int64(p.ChatID),
		ReferrerID:        p.ReferrerID,
		WebhookURL:        p.WebhookURL,
		Tokens:            append([]ListedToken(nil), p.Tokens...),
	}, nil
}

// ProviderUserID is the provider-side account id.
func (a AuthResult) ProviderUserID() string { return a.providerUserID }

// APIKey is the per-user provider key.
func (a AuthResult) APIKey() string { return a.apiKey }

// TelegramID is the numeric Telegram user id the claim belongs to.
func (a AuthResult) TelegramID() int64 { return a.telegramID }

// IntentIDFor returns the user's own listing intent id for a token, if any.
func (a AuthResult) IntentIDFor(chainID, address string) (string, bool) {
	for _, t := range a.Tokens {
		if t.Matches(chainID, address) && t.IntentID != "" {
			return t.IntentID, true
		}
	}
	return "", false
}

// AuthState is the outcome of an authentication check. The concrete types are
// Authenticated, LoginRequired and AuthFailed; a nil AuthState means no auth.
type AuthState interface {
	authState()
}

// Authenticated carries a completed identity claim.
type Authenticated struct {
	Result AuthResult
}

// LoginRequired carries the minting link the user must open first.
type LoginRequired struct {
	URL string
}

// AuthFailed is never cached.
type AuthFailed struct {
	Err error
}

func (Authenticated) authState() {}
func (LoginRequired) authState() {}
func (AuthFailed) authState()    {}

// AuthKind names an AuthState for logs.
func AuthKind(s AuthState) string {
	switch s.(type) {
	case Authenticated:
		return "authenticated"
	case LoginRequired:
		return "login_required"
	case AuthFailed:
		return "failed"
	default:
		return "none"
	}
}

// FlexibleInt decodes JSON numbers and numeric strings.
type FlexibleInt int64

// UnmarshalJSON accepts 123, "123" and null.
func (f *FlexibleInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexibleInt(n)
	return nil
}
