// Package keyboard describes inline reply markup as a grid of labeled buttons with opaque payloads.
package keyboard

import (
	"encoding/json"

	tele "gopkg.in/telebot.v4"
)

// Button is an inline button. Data is delivered back verbatim as callback data.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Inline is a grid of buttons. A nil grid means "no markup"; an empty non-nil grid clears existing markup.
type Inline [][]Button

// Remove returns a grid that clears the keyboard of an edited message.
func Remove() Inline {
	return Inline{}
}

// Row groups buttons into one row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Rows builds a grid from rows.
func Rows(rows ...[]Button) Inline {
	return Inline(rows)
}

// Grid splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, each button is placed on its own row.
func Grid(buttons []Button, n int) Inline {
	if n <= 1 {
		n = 1
	}
	rows := make(Inline, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return rows
}

// Buttons flattens the grid in row order.
func (k Inline) Buttons() []Button {
	var out []Button
	for _, row := range k {
		out = append(out, row...)
	}
	return out
}

// Markup converts the grid to telebot markup. A nil grid yields nil.
func (k Inline) Markup() *tele.ReplyMarkup {
	if k == nil {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(k))
	for i, row := range k {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// FromMarkup converts telebot markup back into a grid.
// Markup without an inline keyboard yields nil.
func FromMarkup(m *tele.ReplyMarkup) Inline {
	if m == nil || m.InlineKeyboard == nil {
		return nil
	}
	out := make(Inline, len(m.InlineKeyboard))
	for i, row := range m.InlineKeyboard {
		r := make([]Button, len(row))
		for j, btn := range row {
			data := btn.Data
			if btn.Unique != "" {
				data = "\f" + btn.Unique + "|" + btn.Data
			}
			r[j] = Button{Text: btn.Text, Data: data}
		}
		out[i] = r
	}
	return out
}

type wireMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

// MarshalJSON encodes the grid in the Bot API reply_markup form.
func (k Inline) MarshalJSON() ([]byte, error) {
	rows := [][]Button(k)
	if rows == nil {
		rows = [][]Button{}
	}
	return json.Marshal(wireMarkup{InlineKeyboard: rows})
}

// UnmarshalJSON decodes the Bot API reply_markup form.
func (k *Inline) UnmarshalJSON(data []byte) error {
	var w wireMarkup
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*k = Inline(w.InlineKeyboard)
	if *k == nil {
		*k = Inline{}
	}
	return nil
}
