package domain

// Caller is who a provider request is made on behalf of.
type Caller struct {
	Identity Identity
	// Auth is set once the caller completed a claim.
	Auth *AuthResult
}

// APIKey returns the caller's own provider key, or fallback.
func (c Caller) APIKey(fallback string) string {
	if c.Auth != nil && c.Auth.APIKey() != "" {
		return c.Auth.APIKey()
	}
	return fallback
}

// IntentIDFor looks the token up in the caller's own listings.
func (c Caller) IntentIDFor(chainID, address string) (string, bool) {
	if c.Auth == nil {
		return "", false
	}
	return c.Auth.IntentIDFor(chainID, address)
}
