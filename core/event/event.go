// Package event reduces Telegram updates to the few shapes a conversation reacts to.
package event

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Kind discriminates inbound events.
type Kind string

const (
	KindText     Kind = "text"
	KindNonText  Kind = "non_text"
	KindCallback Kind = "callback"
)

// Meta identifies the update an event came from.
type Meta struct {
	UpdateID int
	ChatID   int64
	UserID   int64
}

// Event is one inbound event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	Metadata() Meta
	isEvent()
}

// TextMessage is a message with a non-empty text body.
type TextMessage struct {
	Meta
	Text string
}

// NonTextMessage is any message without text. Content names the payload (photo, document, ...).
type NonTextMessage struct {
	Meta
	Content string
}

// CallbackAction is an inline button press.
type CallbackAction struct {
	Meta
	ID              string
	Data            string
	Unique          string
	OriginMessageID int
}

func (TextMessage) Kind() Kind    { return KindText }
func (NonTextMessage) Kind() Kind { return KindNonText }
func (CallbackAction) Kind() Kind { return KindCallback }

func (e TextMessage) Metadata() Meta    { return e.Meta }
func (e NonTextMessage) Metadata() Meta { return e.Meta }
func (e CallbackAction) Metadata() Meta { return e.Meta }

func (TextMessage) isEvent()    {}
func (NonTextMessage) isEvent() {}
func (CallbackAction) isEvent() {}

// FromUpdate converts an update into an event.
// It reports false for updates that carry neither a message nor a callback.
func FromUpdate(u tele.Update) (Event, bool) {
	switch {
	case u.Callback != nil:
		return fromCallback(u.ID, u.Callback), true
	case u.Message != nil:
		return fromMessage(u.ID, u.Message), true
	}
	return nil, false
}

func fromMessage(updateID int, m *tele.Message) Event {
	meta := Meta{UpdateID: updateID}
	if m.Chat != nil {
		meta.ChatID = m.Chat.ID
	}
	if m.Sender != nil {
		meta.UserID = m.Sender.ID
	}
	if m.Text != "" {
		return TextMessage{Meta: meta, Text: m.Text}
	}
	return NonTextMessage{Meta: meta, Content: ContentOf(m)}
}

func fromCallback(updateID int, cb *tele.Callback) Event {
	meta := Meta{UpdateID: updateID}
	if cb.Sender != nil {
		meta.UserID = cb.Sender.ID
		meta.ChatID = cb.Sender.ID
	}
	ev := CallbackAction{Meta: meta, ID: cb.ID, Unique: cb.Unique, Data: cb.Data}
	if cb.Message != nil {
		ev.OriginMessageID = cb.Message.ID
		if cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
	}
	if ev.Unique == "" {
		ev.Unique, ev.Data = ParseCallbackData(cb.Data)
	}
	return ev
}

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
// Data without the "\f" prefix is returned unchanged as the payload.
func ParseCallbackData(raw string) (unique, payload string) {
	if !strings.HasPrefix(raw, "\f") {
		return "", raw
	}
	parts := strings.SplitN(strings.TrimPrefix(raw, "\f"), "|", 2)
	unique = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// ContentOf labels the payload of a message without text.
func ContentOf(m *tele.Message) string {
	switch {
	case m == nil:
		return "none"
	case m.Photo != nil:
		return "photo"
	case m.Document != nil:
		return "document"
	case m.Sticker != nil:
		return "sticker"
	case m.Voice != nil:
		return "voice"
	case m.Audio != nil:
		return "audio"
	case m.Video != nil:
		return "video"
	case m.VideoNote != nil:
		return "video_note"
	case m.Animation != nil:
		return "animation"
	case m.Location != nil:
		return "location"
	case m.Contact != nil:
		return "contact"
	case m.Poll != nil:
		return "poll"
	case m.Dice != nil:
		return "dice"
	}
	return "other"
}

// Command extracts the command name from a text body.
// "/start", "/start@calcbot" and "/start payload" all yield "/start".
func Command(text string) (string, bool) {
	name, _, ok := ParseCommand(text)
	return name, ok
}

// ParseCommand splits a command into its name and the bot it mentions.
// "/start@calcbot now" yields ("/start", "calcbot"); mention is empty without "@".
func ParseCommand(text string) (name, mention string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name = text
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name, mention = name[:i], name[i+1:]
	}
	if len(name) < 2 {
		return "", "", false
	}
	return name, mention, true
}

// AddressedTo reports whether a command mention targets username.
// Commands without a mention, or an unknown username, address every bot.
func AddressedTo(mention, username string) bool {
	if mention == "" || username == "" {
		return true
	}
	return strings.EqualFold(mention, strings.TrimPrefix(username, "@"))
}
