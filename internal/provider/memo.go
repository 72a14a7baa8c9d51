package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

// ErrMemo is returned for memos that fail signature or shape checks.
var ErrMemo = errors.New("invalid memo")

// SignMemo produces the HS256 token attached to link requests. The "data"
// claim is the identity serialized with sorted keys so equal identities
// yield equal memos.
func SignMemo(id domain.Identity, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty signing key", ErrMemo)
	}
	data, err := canonicalJSON(id)
	if err != nil {
		return "", err
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"data": data})
	return tok.SignedString([]byte(key))
}

// canonicalJSON round-trips v through a map, which encoding/json writes in key order.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return "", err
	}
	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
