package calc

import (
	"fmt"

	"github.com/m3rciful/calcbot/core/telegram/keyboard"
)

// Operation is one arithmetic choice offered to the user.
type Operation struct {
	Name  string
	Label string
	Apply func(a, b int64) int64
}

var operations = []Operation{
	{Name: "add", Label: "Add", Apply: func(a, b int64) int64 { return a + b }},
	{Name: "subtract", Label: "Subtract", Apply: func(a, b int64) int64 { return a - b }},
}

// Operations returns the supported operations in keyboard order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

func lookup(name string) (Operation, bool) {
	for _, op := range operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// IntentKeyboard lists every operation in one row; button data is the operation name.
func IntentKeyboard() keyboard.Inline {
	buttons := make([]keyboard.Button, 0, len(operations))
	for _, op := range operations {
		buttons = append(buttons, keyboard.Button{Text: op.Label, Data: op.Name})
	}
	return keyboard.Rows(keyboard.Row(buttons...))
}

// offered reports whether data belongs to a button of the intent keyboard.
func offered(data string) bool {
	for _, b := range IntentKeyboard().Buttons() {
		if b.Data == data {
			return true
		}
	}
	return false
}

// Compute applies the named operation. An unknown name means the keyboard and the
// operation table disagree, which is a bug, so it panics.
func Compute(name string, a, b int64) int64 {
	op, ok := lookup(name)
	if !ok {
		panic(fmt.Sprintf("calc: unknown operation %q", name))
	}
	return op.Apply(a, b)
}
