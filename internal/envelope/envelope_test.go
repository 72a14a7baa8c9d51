package envelope

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const testKey = "e4d3638ac94cf85b55f86d52ff72591651fe6bc9f0dbae563d99043adbd0e32f"

func mustCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	c := mustCipher(t)
	in := map[string]any{"user_id": float64(42), "username": "alice", "nested": map[string]any{"ok": true}}
	env, err := c.Seal(in)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if n := strings.Count(env, ":"); n != 2 {
		t.Fatalf("envelope has %d separators: %s", n, env)
	}
	var out map[string]any
	if err := c.Open(env, &out); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %v vs %v", in, out)
	}
}

func TestNonceIsFreshPerCall(t *testing.T) {
	c := mustCipher(t)
	a, _ := c.Seal("same")
	b, _ := c.Seal("same")
	if a == b {
		t.Fatal("two seals produced identical envelopes")
	}
}

func TestTamperingFailsToOpen(t *testing.T) {
	c := mustCipher(t)
	env, err := c.Seal(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	for i := 0; i < len(env); i++ {
		if env[i] == ':' {
			continue
		}
		flipped := []byte(env)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}
		var out map[string]string
		if err := c.Open(string(flipped), &out); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("byte %d tampered: err = %v, out = %v", i, err, out)
		}
	}
}

func TestMalformedInput(t *testing.T) {
	c := mustCipher(t)
	for _, bad := range []string{"", "abc", "zz:yy:xx", "00:00:00", "a:b:c:d:e"} {
		var out any
		if err := c.Open(bad, &out); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("Open(%q) err = %v", bad, err)
		}
	}
}

func TestOpenIgnoresTrailingSalt(t *testing.T) {
	c := mustCipher(t)
	env, _ := c.Seal(map[string]int{"n": 1})
	var out map[string]int
	if err := c.Open(env+":deadbeef", &out); err != nil || out["n"] != 1 {
		t.Fatalf("Open with salt: %v %v", err, out)
	}
}

func TestOpenRejectsNonHexSalt(t *testing.T) {
	c := mustCipher(t)
	env, _ := c.Seal(map[string]int{"n": 1})
	for _, salt := range []string{"", "not-hex", "{\"admin\":true}", "abc"} {
		if _, err := c.OpenRaw(env + ":" + salt); !errors.Is(err, ErrDecrypt) {
			t.Fatalf("OpenRaw with salt %q: err = %v", salt, err)
		}
	}
}

func TestWrongKeyFails(t *testing.T) {
	c := mustCipher(t)
	env, _ := c.Seal("secret")
	other, _ := GenerateKey()
	c2, err := New(other)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out string
	if err := c2.Open(env, &out); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New("abcd"); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("err = %v", err)
	}
}
