// Package format renders MarkdownV2 fragments for Telegram messages.
package format

import "strings"

// mdV2Specials must be escaped anywhere outside of code and link targets.
const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

// Escape escapes text for MarkdownV2.
func Escape(text string) string {
	if !strings.ContainsAny(text, mdV2Specials) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeURL escapes the inside of a (...) link target, where only ")" and "\" are special.
func escapeURL(u string) string {
	if !strings.ContainsAny(u, `)\`) {
		return u
	}
	var b strings.Builder
	for _, r := range u {
		if r == ')' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Bold wraps escaped text in *...*.
func Bold(text string) string {
	return "*" + Escape(text) + "*"
}

// Italic wraps escaped text in _..._.
func Italic(text string) string {
	return "_" + Escape(text) + "_"
}

// Code renders inline code. Only "`" and "\" need escaping inside.
func Code(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	return "`" + strings.ReplaceAll(text, "`", "\\`") + "`"
}

// Link renders [label](url) with the label escaped.
func Link(label, url string) string {
	if url == "" {
		return Escape(label)
	}
	return "[" + Escape(label) + "](" + escapeURL(url) + ")"
}

// Lines joins non-empty fragments with newlines.
func Lines(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
