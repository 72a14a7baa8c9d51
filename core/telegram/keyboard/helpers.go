// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. Exactly one of Data, URL or WebApp is used,
// checked in that order.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
	WebApp string
}

// Data is a callback button.
func Data(text, unique, data string) Button {
	return Button{Text: text, Unique: unique, Data: data}
}

// URL opens a link.
func URL(text, url string) Button {
	return Button{Text: text, URL: url}
}

// WebApp opens a Telegram mini app.
func WebApp(text, url string) Button {
	return Button{Text: text, WebApp: url}
}

func (b Button) btn(m *tele.ReplyMarkup) tele.Btn {
	switch {
	case b.Unique != "":
		return m.Data(b.Text, b.Unique, b.Data)
	case b.WebApp != "":
		return m.WebApp(b.Text, &tele.WebApp{URL: b.WebApp})
	default:
		return m.URL(b.Text, b.URL)
	}
}

// Rows builds an inline keyboard, skipping empty rows.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	inline := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make(tele.Row, 0, len(row))
		for _, b := range row {
			r = append(r, b.btn(m))
		}
		inline = append(inline, r)
	}
	m.Inline(inline...)
	return m
}

// Grid lays buttons out n per row.
func Grid(buttons []Button, n int) *tele.ReplyMarkup {
	return Rows(Chunk(buttons, n)...)
}

// Chunk splits buttons into rows of up to n.
func Chunk(buttons []Button, n int) [][]Button {
	if n <= 1 {
		n = 1
	}
	rows := make([][]Button, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}
