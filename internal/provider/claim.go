package provider

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// ClaimOutcome is the decoded reply of the claim endpoint. It is one of
// ClaimSealed, ClaimLink or ClaimMalformed.
type ClaimOutcome interface {
	claimOutcome()
}

// ClaimSealed means the user already holds an access pass; the identity is
// inside the envelope.
type ClaimSealed struct {
	EncryptedUserData string
}

// ClaimLink means the user has to mint first.
type ClaimLink struct {
	URL string
}

// ClaimMalformed is any reply that is neither of the above.
type ClaimMalformed struct {
	Reason string
}

func (ClaimSealed) claimOutcome()    {}
func (ClaimLink) claimOutcome()      {}
func (ClaimMalformed) claimOutcome() {}

// DecodeClaim interprets the raw claim reply body. Accepted shapes:
//
//	{"data": {"encryptedUserData": "..."}}
//	{"data": "https://..."}
//	{"data": {"url": "https://..."}}
func DecodeClaim(raw []byte) ClaimOutcome {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClaimMalformed{Reason: "body is not a json object"}
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ClaimMalformed{Reason: "missing data"}
	}

	switch data[0] {
	case '"':
		var link string
		if err := json.Unmarshal(data, &link); err != nil {
			return ClaimMalformed{Reason: "data string does not decode"}
		}
		return linkOutcome(link)
	case '{':
		var obj struct {
			EncryptedUserData string `json:"encryptedUserData"`
			URL               string `json:"url"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return ClaimMalformed{Reason: "data object does not decode"}
		}
		if s := strings.TrimSpace(obj.EncryptedUserData); s != "" {
			return ClaimSealed{EncryptedUserData: s}
		}
		if obj.URL != "" {
			return linkOutcome(obj.URL)
		}
		return ClaimMalformed{Reason: "data has neither encryptedUserData nor url"}
	default:
		return ClaimMalformed{Reason: "unexpected data type"}
	}
}

func linkOutcome(s string) ClaimOutcome {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return ClaimMalformed{Reason: "data is not an absolute url"}
	}
	return ClaimLink{URL: s}
}
