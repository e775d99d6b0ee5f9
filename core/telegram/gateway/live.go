package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/metrics"
	"github.com/m3rciful/calcbot/core/telegram/format"
	"github.com/m3rciful/calcbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Bot is the part of *tele.Bot the live gateway calls.
type Bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Pin(msg tele.Editable, opts ...interface{}) error
}

var _ Bot = (*tele.Bot)(nil)

// Live delivers requests to the Bot API.
type Live struct {
	bot       Bot
	parseMode tele.ParseMode
}

// NewLive returns a gateway that escapes text for parseMode and sends it with bot.
func NewLive(bot Bot, parseMode tele.ParseMode) *Live {
	return &Live{bot: bot, parseMode: parseMode}
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

func (l *Live) sendOptions(markup keyboard.Inline) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: l.parseMode}
	if markup != nil {
		opts.ReplyMarkup = markup.Markup()
	}
	return opts
}

func (l *Live) text(s string) (string, error) {
	return format.ForParseMode(s, l.parseMode)
}

// Deliver performs the request. Failures are returned as *TransportError.
func (l *Live) Deliver(ctx context.Context, req Request) (Acknowledgment, error) {
	if err := ctx.Err(); err != nil {
		return Acknowledgment{}, newTransportError(req.Kind(), err)
	}
	start := time.Now()
	ack, err := l.deliver(req)
	l.log(ctx, req, start, err)
	if err != nil {
		te := newTransportError(req.Kind(), err)
		metrics.IncDelivery(ModeLive, string(req.Kind()), te.Class)
		return Acknowledgment{}, te
	}
	metrics.IncDelivery(ModeLive, string(req.Kind()), "")
	return ack, nil
}

func (l *Live) deliver(req Request) (Acknowledgment, error) {
	switch r := req.(type) {
	case SendMessage:
		text, err := l.text(r.Text)
		if err != nil {
			return Acknowledgment{}, err
		}
		msg, err := l.bot.Send(tele.ChatID(r.ChatID), text, l.sendOptions(r.ReplyMarkup))
		if err != nil {
			return Acknowledgment{}, err
		}
		return l.ack(msg, r.ChatID, 0, r.Text, r.ReplyMarkup), nil
	case EditMessageText:
		text, err := l.text(r.Text)
		if err != nil {
			return Acknowledgment{}, err
		}
		msg, err := l.bot.Edit(stored(r.ChatID, r.MessageID), text, l.sendOptions(r.ReplyMarkup))
		if err != nil {
			return Acknowledgment{}, err
		}
		return l.ack(msg, r.ChatID, r.MessageID, r.Text, r.ReplyMarkup), nil
	case EditMessageMarkup:
		markup := r.ReplyMarkup.Markup()
		if len(r.ReplyMarkup) == 0 {
			markup = &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{}}
		}
		_, err := l.bot.EditReplyMarkup(stored(r.ChatID, r.MessageID), markup)
		return Acknowledgment{}, err
	case DeleteMessage:
		return Acknowledgment{}, l.bot.Delete(stored(r.ChatID, r.MessageID))
	case PinMessage:
		var opts []interface{}
		if r.Silent {
			opts = append(opts, tele.Silent)
		}
		return Acknowledgment{}, l.bot.Pin(stored(r.ChatID, r.MessageID), opts...)
	}
	panic("gateway: unknown request type")
}

// ack reports the text as handlers wrote it, before escaping, so the acknowledgment
// of both variants carries the same text for the same request.
func (l *Live) ack(msg *tele.Message, chatID int64, messageID int, text string, markup keyboard.Inline) Acknowledgment {
	ack := AckFromMessage(msg)
	if ack.ChatID == 0 {
		ack.ChatID = chatID
	}
	if ack.MessageID == 0 {
		ack.MessageID = messageID
	}
	ack.Text = text
	if markup != nil {
		ack.ReplyMarkup = markup
	}
	return ack
}

func (l *Live) log(ctx context.Context, req Request, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("kind", string(req.Kind())),
		slog.Int64("chat_id", req.Chat()),
		slog.Duration("took", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
		)
		logger.Error(ctx, "gateway", "deliver", attrs...)
		return
	}
	logger.Debug(ctx, "gateway", "deliver", attrs...)
}
