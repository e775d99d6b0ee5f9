// Package calc is the two-operand calculator dialogue: pick an operation, send two numbers, get the result.
package calc

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/m3rciful/calcbot/core/conversation"
	"github.com/m3rciful/calcbot/core/dispatch"
	"github.com/m3rciful/calcbot/core/event"
	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/gateway"
)

// Reply texts.
const (
	TextWhatDoYouWant     = "What do you want to do?"
	TextEnterFirstNumber  = "Enter the first number"
	TextEnterSecondNumber = "Enter the second number"
	TextPleaseEnterNumber = "Please enter a number"
	TextPleaseSendText    = "Please send text"
	TextChooseOption      = "Please choose one of the options"
	TextResultPrefix      = "Your result: "
)

// StartCommand opens a new calculation.
const StartCommand = "/start"

// Routes returns the calculator's transitions.
func Routes() []dispatch.Route {
	return []dispatch.Route{
		{Name: "calc.start", State: conversation.KindStart, On: event.KindText, Command: StartCommand, Description: "Start a calculation", Handler: Start},
		{Name: "calc.choose_operation", State: conversation.KindAwaitingIntent, On: event.KindCallback, Handler: ChooseOperation},
		{Name: "calc.first_operand", State: conversation.KindAwaitingFirstOperand, On: event.KindText, Handler: FirstOperand},
		{Name: "calc.first_operand.non_text", State: conversation.KindAwaitingFirstOperand, On: event.KindNonText, Handler: AskForText},
		{Name: "calc.second_operand", State: conversation.KindAwaitingSecondOperand, On: event.KindText, Handler: SecondOperand},
		{Name: "calc.second_operand.non_text", State: conversation.KindAwaitingSecondOperand, On: event.KindNonText, Handler: AskForText},
	}
}

// Table builds the validated routing table.
func Table() (*dispatch.Table, error) {
	return dispatch.NewTable(Routes()...)
}

func send(ctx context.Context, in dispatch.Input, text string) error {
	_, err := in.Out.Deliver(ctx, gateway.SendMessage{ChatID: in.ChatID, Text: text})
	return err
}

// Start offers the operation keyboard.
func Start(ctx context.Context, in dispatch.Input) (conversation.State, error) {
	if _, err := in.Out.Deliver(ctx, gateway.SendMessage{ChatID: in.ChatID, Text: TextWhatDoYouWant, ReplyMarkup: IntentKeyboard()}); err != nil {
		return nil, err
	}
	return conversation.AwaitingIntent{}, nil
}

// ChooseOperation removes the keyboard from the prompt and asks for the first number.
func ChooseOperation(ctx context.Context, in dispatch.Input) (conversation.State, error) {
	cb, _ := in.Event.(event.CallbackAction)
	if !offered(cb.Data) {
		logger.Warn(ctx, "calc", "operation.unknown", slog.String("data", logger.SanitizeLimit(cb.Data, 64)))
		if _, err := in.Out.Deliver(ctx, gateway.SendMessage{ChatID: in.ChatID, Text: TextChooseOption, ReplyMarkup: IntentKeyboard()}); err != nil {
			return nil, err
		}
		return in.State, nil
	}

	if cb.OriginMessageID != 0 {
		if _, err := in.Out.Deliver(ctx, gateway.EditMessageMarkup{ChatID: in.ChatID, MessageID: cb.OriginMessageID}); err != nil {
			return nil, err
		}
	}
	if err := send(ctx, in, TextEnterFirstNumber); err != nil {
		return nil, err
	}
	return conversation.AwaitingFirstOperand{Operation: cb.Data}, nil
}

// FirstOperand parses the first number.
func FirstOperand(ctx context.Context, in dispatch.Input) (conversation.State, error) {
	st := in.State.(conversation.AwaitingFirstOperand)
	n, ok := operand(in.Event)
	if !ok {
		return in.State, send(ctx, in, TextPleaseEnterNumber)
	}
	if err := send(ctx, in, TextEnterSecondNumber); err != nil {
		return nil, err
	}
	return conversation.AwaitingSecondOperand{FirstOperand: n, Operation: st.Operation}, nil
}

// SecondOperand parses the second number, replies with the result and ends the conversation.
func SecondOperand(ctx context.Context, in dispatch.Input) (conversation.State, error) {
	st := in.State.(conversation.AwaitingSecondOperand)
	n, ok := operand(in.Event)
	if !ok {
		return in.State, send(ctx, in, TextPleaseEnterNumber)
	}
	result := Compute(st.Operation, st.FirstOperand, n)
	if err := send(ctx, in, TextResultPrefix+strconv.FormatInt(result, 10)); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "calc", "result", slog.String("operation", st.Operation))
	return conversation.Start{}, nil
}

// AskForText answers a message without text while a number is expected.
func AskForText(ctx context.Context, in dispatch.Input) (conversation.State, error) {
	return in.State, send(ctx, in, TextPleaseSendText)
}

// operand reads a 32-bit signed integer from a text event.
func operand(ev event.Event) (int64, bool) {
	txt, ok := ev.(event.TextMessage)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(txt.Text, 10, 32)
	if err != nil {
		return 0, false
	}
	return n, true
}
