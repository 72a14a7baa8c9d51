package format

import "testing"

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"PONKE":        "PONKE",
		"1.5%":         `1\.5%`,
		"-2.31":        `\-2\.31`,
		"a_b*c":        `a\_b\*c`,
		"(x) [y] {z}!": `\(x\) \[y\] \{z\}\!`,
		`back\slash`:   `back\\slash`,
	}
	for in, want := range cases {
		if got := Escape(in); got != want {
			t.Fatalf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLink(t *testing.T) {
	got := Link("Trade $PONKE.", "https://acme.example/pay?x=(1)")
	want := `[Trade $PONKE\.](https://acme.example/pay?x=(1\))`
	if got != want {
		t.Fatalf("Link = %q, want %q", got, want)
	}
	if got := Link("plain", ""); got != "plain" {
		t.Fatalf("Link without url = %q", got)
	}
}

func TestCodeAndLines(t *testing.T) {
	if got := Code("0xab`c"); got != "`0xab\\`c`" {
		t.Fatalf("Code = %q", got)
	}
	if got := Lines("a", "", "b"); got != "a\nb" {
		t.Fatalf("Lines = %q", got)
	}
}
