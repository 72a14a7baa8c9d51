package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

// parseMemo verifies a memo the way the provider does and returns the identity inside.
func parseMemo(memo, key string) (domain.Identity, error) {
	var id domain.Identity
	tok, err := jwt.Parse(memo, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrMemo, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return id, ErrMemo
	}
	data, ok := claims["data"].(string)
	if !ok {
		return id, fmt.Errorf("%w: missing data claim", ErrMemo)
	}
	if err := json.Unmarshal([]byte(data), &id); err != nil {
		return id, fmt.Errorf("%w: %v", ErrMemo, err)
	}
	return id, nil
}

func TestMemoRoundTripAndWrongKey(t *testing.T) {
	id := domain.Identity{UserID: 42, Username: "alice", ChatID: 42}
	memo, err := SignMemo(id, "k1")
	if err != nil {
		t.Fatalf("SignMemo: %v", err)
	}
	again, _ := SignMemo(id, "k1")
	if memo != again {
		t.Fatal("memo is not deterministic")
	}
	got, err := parseMemo(memo, "k1")
	if err != nil || got != id {
		t.Fatalf("parseMemo = %+v, %v", got, err)
	}
	if _, err := parseMemo(memo, "k2"); !errors.Is(err, ErrMemo) {
		t.Fatalf("wrong key err = %v", err)
	}
	if _, err := SignMemo(id, ""); !errors.Is(err, ErrMemo) {
		t.Fatalf("empty key err = %v", err)
	}
}
