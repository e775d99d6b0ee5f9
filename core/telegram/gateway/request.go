package gateway

import (
	"github.com/m3rciful/calcbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// RequestKind names an outbound effect.
type RequestKind string

const (
	KindSendMessage       RequestKind = "send_message"
	KindEditMessageText   RequestKind = "edit_message_text"
	KindEditMessageMarkup RequestKind = "edit_message_markup"
	KindDeleteMessage     RequestKind = "delete_message"
	KindPinMessage        RequestKind = "pin_message"
)

// Request is one outbound effect. The set of implementations is closed.
type Request interface {
	Kind() RequestKind
	Chat() int64
	isRequest()
}

// SendMessage posts a new message. A nil ReplyMarkup sends no keyboard.
type SendMessage struct {
	ChatID      int64
	Text        string
	ReplyMarkup keyboard.Inline
}

// EditMessageText replaces the text (and optionally the keyboard) of a message.
type EditMessageText struct {
	ChatID      int64
	MessageID   int
	Text        string
	ReplyMarkup keyboard.Inline
}

// EditMessageMarkup replaces the keyboard of a message. An empty or nil grid removes it.
type EditMessageMarkup struct {
	ChatID      int64
	MessageID   int
	ReplyMarkup keyboard.Inline
}

// DeleteMessage removes a message.
type DeleteMessage struct {
	ChatID    int64
	MessageID int
}

// PinMessage pins a message. Silent suppresses the notification.
type PinMessage struct {
	ChatID    int64
	MessageID int
	Silent    bool
}

func (SendMessage) Kind() RequestKind       { return KindSendMessage }
func (EditMessageText) Kind() RequestKind   { return KindEditMessageText }
func (EditMessageMarkup) Kind() RequestKind { return KindEditMessageMarkup }
func (DeleteMessage) Kind() RequestKind     { return KindDeleteMessage }
func (PinMessage) Kind() RequestKind        { return KindPinMessage }

func (r SendMessage) Chat() int64       { return r.ChatID }
func (r EditMessageText) Chat() int64   { return r.ChatID }
func (r EditMessageMarkup) Chat() int64 { return r.ChatID }
func (r DeleteMessage) Chat() int64     { return r.ChatID }
func (r PinMessage) Chat() int64        { return r.ChatID }

func (SendMessage) isRequest()       {}
func (EditMessageText) isRequest()   {}
func (EditMessageMarkup) isRequest() {}
func (DeleteMessage) isRequest()     {}
func (PinMessage) isRequest()        {}

// ProducesMessage reports whether a request yields a message acknowledgment.
func ProducesMessage(r Request) bool {
	switch r.(type) {
	case SendMessage, EditMessageText:
		return true
	}
	return false
}

// Acknowledgment is the result of a successful delivery.
// It is zero for fire-and-forget requests.
type Acknowledgment struct {
	MessageID   int
	ChatID      int64
	Text        string
	ReplyMarkup keyboard.Inline
}

// IsZero reports whether the acknowledgment carries no message.
func (a Acknowledgment) IsZero() bool {
	return a.MessageID == 0 && a.ChatID == 0 && a.Text == "" && a.ReplyMarkup == nil
}

// AckFromMessage converts a message returned by the Bot API.
func AckFromMessage(m *tele.Message) Acknowledgment {
	if m == nil {
		return Acknowledgment{}
	}
	ack := Acknowledgment{MessageID: m.ID, Text: m.Text, ReplyMarkup: keyboard.FromMarkup(m.ReplyMarkup)}
	if m.Chat != nil {
		ack.ChatID = m.Chat.ID
	}
	return ack
}
