// Package fixture builds well-formed Telegram objects for tests and for the intercepting gateway.
//
// Every object is rendered from a JSON template and decoded into the real telebot type,
// so fixtures go through the same decoding path as updates received from the Bot API.
package fixture

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const (
	TestUserID      int64 = 123456789
	TestGroupID     int64 = -123456789
	TestUpdateID          = 1
	TestMessageID         = 1
	TestDate        int64 = 1700000000
	TestUsername          = "test_user"
	TestFirstName         = "Test"
	TestLastName          = "User"
	TestGroupTitle        = "Test Group"
	TestCallbackID        = "test_callback"
	TestBotToken          = "1234567890:TEST-TOKEN"
	TestBotID       int64 = 1234567890
	TestBotName           = "Test Bot"
	TestBotUsername       = "test_bot"
	// BotMessageID is the id of every synthesized bot message unless an explicit id is given.
	BotMessageID = 1
)

// ChatType selects the chat a fixture is sent in.
type ChatType int

const (
	Private ChatType = iota
	Group
	Supergroup
	Channel
)

func (c ChatType) String() string {
	switch c {
	case Group:
		return "group"
	case Supergroup:
		return "supergroup"
	case Channel:
		return "channel"
	}
	return "private"
}

// ChatID returns the chat id fixtures of this type use.
func (c ChatType) ChatID() int64 {
	if c == Private {
		return TestUserID
	}
	return TestGroupID
}

// EscapeString escapes s for interpolation into a JSON string literal.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func chatJSON(c ChatType) string {
	if c == Private {
		return fmt.Sprintf(`{"id":%d,"type":"private","first_name":"%s","last_name":"%s","username":"%s"}`,
			TestUserID, TestFirstName, TestLastName, TestUsername)
	}
	return fmt.Sprintf(`{"id":%d,"type":"%s","title":"%s"}`, TestGroupID, c, EscapeString(TestGroupTitle))
}

func chatJSONForID(chatID int64) string {
	if chatID < 0 {
		return fmt.Sprintf(`{"id":%d,"type":"group","title":"%s"}`, chatID, EscapeString(TestGroupTitle))
	}
	return fmt.Sprintf(`{"id":%d,"type":"private"}`, chatID)
}

func userJSON() string {
	return fmt.Sprintf(`{"id":%d,"is_bot":false,"first_name":"%s","last_name":"%s","username":"%s","language_code":"en"}`,
		TestUserID, TestFirstName, TestLastName, TestUsername)
}

func botJSON(botID int64) string {
	return fmt.Sprintf(`{"id":%d,"is_bot":true,"first_name":"%s","username":"%s"}`,
		botID, TestBotName, TestBotUsername)
}

// envelope renders the fields every user message shares.
func envelope(c ChatType) string {
	from := ""
	if c != Channel {
		from = `,"from":` + userJSON()
	}
	return fmt.Sprintf(`"message_id":%d,"date":%d,"chat":%s%s`, TestMessageID, TestDate, chatJSON(c), from)
}

func mustDecode[T any](raw string) *T {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		panic(fmt.Sprintf("fixture: malformed template %s: %v", raw, err))
	}
	return &v
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// Message builds a text message. When command is set, the first word is tagged as a bot command.
func Message(text string, command bool, chat ChatType) *tele.Message {
	entities := ""
	if command {
		word := text
		if i := strings.IndexAny(word, " \n\t"); i >= 0 {
			word = word[:i]
		}
		entities = fmt.Sprintf(`,"entities":[{"type":"bot_command","offset":0,"length":%d}]`, utf16Len(word))
	}
	return mustDecode[tele.Message](fmt.Sprintf(`{%s,"text":"%s"%s}`, envelope(chat), EscapeString(text), entities))
}

// Photo builds a message carrying a photo and no text.
func Photo(mediaGroup bool, chat ChatType) *tele.Message {
	group := ""
	if mediaGroup {
		group = `,"media_group_id":"test_media_group"`
	}
	return mustDecode[tele.Message](fmt.Sprintf(
		`{%s%s,"photo":[{"file_id":"test_photo_small","file_unique_id":"test_photo_small_u","width":90,"height":90,"file_size":1024},`+
			`{"file_id":"test_photo","file_unique_id":"test_photo_u","width":800,"height":800,"file_size":65536}]}`,
		envelope(chat), group))
}

// Document builds a message carrying a document and no text.
func Document(chat ChatType) *tele.Message {
	return mustDecode[tele.Message](fmt.Sprintf(
		`{%s,"document":{"file_id":"test_document","file_unique_id":"test_document_u","file_name":"test.txt","mime_type":"text/plain","file_size":128}}`,
		envelope(chat)))
}

// Callback builds a button press on a bot message in the given chat.
func Callback(data string, chat ChatType) *tele.Callback {
	origin := fmt.Sprintf(`{"message_id":%d,"date":%d,"chat":%s,"from":%s,"text":"origin"}`,
		BotMessageID, TestDate, chatJSON(chat), botJSON(TestBotID))
	return mustDecode[tele.Callback](fmt.Sprintf(`{"id":"%s","from":%s,"message":%s,"chat_instance":"test_instance","data":"%s"}`,
		TestCallbackID, userJSON(), origin, EscapeString(data)))
}

// MessageUpdate wraps a message into an update.
func MessageUpdate(m *tele.Message) tele.Update {
	return tele.Update{ID: TestUpdateID, Message: m}
}

// CallbackUpdate wraps a callback into an update.
func CallbackUpdate(cb *tele.Callback) tele.Update {
	return tele.Update{ID: TestUpdateID, Callback: cb}
}

// BotIDFromToken returns the numeric prefix of a bot token.
func BotIDFromToken(token string) (int64, error) {
	prefix, _, ok := strings.Cut(token, ":")
	if !ok {
		return 0, fmt.Errorf("fixture: token has no ':' separator")
	}
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("fixture: token prefix %q is not a bot id", prefix)
	}
	return id, nil
}

// BotUser builds the bot identity for token.
func BotUser(token string) (*tele.User, error) {
	id, err := BotIDFromToken(token)
	if err != nil {
		return nil, err
	}
	return mustDecode[tele.User](botJSON(id)), nil
}

// BotMessage builds a message authored by the test bot, as returned by sendMessage or editMessageText.
// A zero messageID selects BotMessageID.
func BotMessage(chatID int64, messageID int, text string, markup keyboard.Inline) *tele.Message {
	if messageID == 0 {
		messageID = BotMessageID
	}
	rm := ""
	if len(markup) > 0 {
		raw, err := json.Marshal(markup)
		if err != nil {
			panic(fmt.Sprintf("fixture: encode markup: %v", err))
		}
		rm = `,"reply_markup":` + string(raw)
	}
	return mustDecode[tele.Message](fmt.Sprintf(`{"message_id":%d,"date":%d,"chat":%s,"from":%s,"text":"%s"%s}`,
		messageID, TestDate, chatJSONForID(chatID), botJSON(TestBotID), EscapeString(text), rm))
}

func mustEvent(u tele.Update) event.Event {
	ev, ok := event.FromUpdate(u)
	if !ok {
		panic("fixture: update carries no event")
	}
	return ev
}

// TextEvent is a private-chat text message event.
func TextEvent(text string) event.Event {
	return mustEvent(MessageUpdate(Message(text, false, Private)))
}

// CommandEvent is a private-chat command event.
func CommandEvent(command string) event.Event {
	return mustEvent(MessageUpdate(Message(command, true, Private)))
}

// PhotoEvent is a private-chat photo event.
func PhotoEvent() event.Event {
	return mustEvent(MessageUpdate(Photo(false, Private)))
}

// CallbackEvent is a private-chat button press event.
func CallbackEvent(data string) event.Event {
	return mustEvent(CallbackUpdate(Callback(data, Private)))
}
