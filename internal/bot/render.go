package bot

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AcmeNiles/AcmeTradeBot/core/telegram/format"
	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

const notAvailable = "N/A"

var (
	sciThreshold = decimal.RequireFromString("0.001")
	thousand     = decimal.NewFromInt(1000)
	suffixes     = []string{"", "K", "M", "B", "T"}
)

// formatPrice renders "$0.1234", or "$1.23e-5" below 0.001.
func formatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return notAvailable
	}
	if p.Decimal.LessThan(sciThreshold) {
		f, _ := p.Decimal.Float64()
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', 2, 64), "e")
		n, _ := strconv.Atoi(exp)
		return "$" + mant + "e" + strconv.Itoa(n)
	}
	s := p.Decimal.StringFixed(4)
	s = strings.TrimRight(s, "0")
	return "$" + strings.TrimSuffix(s, ".")
}

// formatCompact renders 12345678 as "12.35M".
func formatCompact(v decimal.NullDecimal) string {
	if !v.Valid {
		return notAvailable
	}
	d, i := v.Decimal, 0
	for d.GreaterThanOrEqual(thousand) && i < len(suffixes)-1 {
		d = d.Div(thousand)
		i++
	}
	return d.StringFixed(2) + suffixes[i]
}

// formatChange renders a signed percentage with a direction marker.
func formatChange(v decimal.NullDecimal) string {
	if !v.Valid {
		return notAvailable
	}
	if v.Decimal.IsPositive() {
		return "+" + v.Decimal.StringFixed(2) + "% 🟢"
	}
	return v.Decimal.StringFixed(2) + "% 🔴"
}

func dollars(v decimal.NullDecimal) string {
	s := formatCompact(v)
	if s == notAvailable {
		return s
	}
	return "$" + s
}

func verb(in domain.Intent) string {
	switch in {
	case domain.IntentShare:
		return "share"
	case domain.IntentBuy:
		return "buy"
	case domain.IntentPay:
		return "pay"
	case domain.IntentRequest:
		return "request"
	case domain.IntentList:
		return "list"
	}
	return "trade"
}

func cardHeading(in domain.Intent, symbol string) string {
	switch in {
	case domain.IntentShare:
		return "🤑 Share " + format.Bold(symbol)
	case domain.IntentBuy:
		return "💳 Buy " + format.Bold(symbol)
	}
	return "📢 Trade " + format.Bold(symbol)
}

// tokenCard is the MarkdownV2 body of one token.
func tokenCard(in domain.Intent, t domain.TokenRecord) string {
	return cardHeading(in, t.Symbol) + "\n\n" +
		format.Escape("🪙 Price: ") + format.Bold(formatPrice(t.Price)) + "\n" +
		format.Escape("📈 24h Change: ") + format.Bold(formatChange(t.Change24h)) + "\n\n" +
		format.Escape("💰 Market Cap: ") + format.Bold(dollars(t.MarketCap)) + "\n" +
		format.Escape("📊 24h Volume: ") + format.Bold(dollars(t.Volume24h))
}

// shareURL opens Telegram's forward dialog prefilled with link.
func shareURL(link, text string) string {
	q := url.Values{}
	q.Set("url", link)
	if text != "" {
		q.Set("text", text)
	}
	return "https://t.me/share/url?" + q.Encode()
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
