package domain

// Identity describes the Telegram caller. It is what the bot knows before any
// claim completes, and it is what gets sealed into the claim header.
type Identity struct {
	UserID          int64  `json:"user_id"`
	Username        string `json:"username,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	IsBot           bool   `json:"is_bot"`
	ChatID          int64  `json:"chat_id"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	WebhookURL      string `json:"webhook_url,omitempty"`
	ReferrerID      string `json:"referrer_id,omitempty"`
}

// DisplayName prefers the username, then the first name.
func (i Identity) DisplayName() string {
	if i.Username != "" {
		return "@" + i.Username
	}
	if i.FirstName != "" {
		return i.FirstName
	}
	return "there"
}
