package provider

import "testing"

func TestDecodeClaim(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want ClaimOutcome
	}{
		{"sealed", `{"data":{"encryptedUserData":"aa:bb:cc"}}`, ClaimSealed{EncryptedUserData: "aa:bb:cc"}},
		{"bare url", `{"data":"https://mint.acme.test/x"}`, ClaimLink{URL: "https://mint.acme.test/x"}},
		{"url object", `{"data":{"url":"https://mint.acme.test/y"}}`, ClaimLink{URL: "https://mint.acme.test/y"}},
	}
	for _, tc := range cases {
		if got := DecodeClaim([]byte(tc.raw)); got != tc.want {
			t.Fatalf("%s: got %#v, want %#v", tc.name, got, tc.want)
		}
	}

	for _, raw := range []string{`{}`, `{"data":null}`, `{"data":{}}`, `{"data":"not a url"}`, `{"data":42}`, `[]`, `garbage`} {
		if _, ok := DecodeClaim([]byte(raw)).(ClaimMalformed); !ok {
			t.Fatalf("DecodeClaim(%s) not malformed", raw)
		}
	}
}
