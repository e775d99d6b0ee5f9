// Package conversation models the per-chat dialogue state and the store it lives in.
package conversation

import "strconv"

// Kind names a state variant. It is also the discriminator of the persisted encoding.
type Kind string

const (
	// KindStart is the initial and terminal state.
	KindStart Kind = "start"
	// KindAwaitingIntent waits for the user to choose an operation.
	KindAwaitingIntent Kind = "awaiting_intent"
	// KindAwaitingFirstOperand waits for the first number.
	KindAwaitingFirstOperand Kind = "awaiting_first_operand"
	// KindAwaitingSecondOperand waits for the second number.
	KindAwaitingSecondOperand Kind = "awaiting_second_operand"
)

// State is one position of a conversation. The set of implementations is closed.
type State interface {
	Kind() Kind
	String() string
	isState()
}

// Start is the default state of every conversation.
type Start struct{}

// AwaitingIntent follows the start command.
type AwaitingIntent struct{}

// AwaitingFirstOperand remembers the selected operation.
type AwaitingFirstOperand struct {
	Operation string
}

// AwaitingSecondOperand remembers the operation and the parsed first operand.
type AwaitingSecondOperand struct {
	FirstOperand int64
	Operation    string
}

func (Start) Kind() Kind                 { return KindStart }
func (AwaitingIntent) Kind() Kind        { return KindAwaitingIntent }
func (AwaitingFirstOperand) Kind() Kind  { return KindAwaitingFirstOperand }
func (AwaitingSecondOperand) Kind() Kind { return KindAwaitingSecondOperand }

func (Start) isState()                 {}
func (AwaitingIntent) isState()        {}
func (AwaitingFirstOperand) isState()  {}
func (AwaitingSecondOperand) isState() {}

func (Start) String() string          { return string(KindStart) }
func (AwaitingIntent) String() string { return string(KindAwaitingIntent) }

func (s AwaitingFirstOperand) String() string {
	return string(KindAwaitingFirstOperand) + "{operation=" + s.Operation + "}"
}

func (s AwaitingSecondOperand) String() string {
	return string(KindAwaitingSecondOperand) + "{first=" + strconv.FormatInt(s.FirstOperand, 10) + ",operation=" + s.Operation + "}"
}

// Normalize maps a nil state to Start.
func Normalize(s State) State {
	if s == nil {
		return Start{}
	}
	return s
}

// Equal compares two states by value; nil equals Start.
func Equal(a, b State) bool {
	return Normalize(a) == Normalize(b)
}

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindStart, KindAwaitingIntent, KindAwaitingFirstOperand, KindAwaitingSecondOperand}
}
