package conversation

import (
	"encoding/json"
	"fmt"
)

// CodecVersion is written into every encoded record.
const CodecVersion = 1

// CodecError reports a record that cannot be encoded or decoded.
type CodecError struct {
	Version int
	Kind    Kind
	Err     error
}

func (e *CodecError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("conversation codec: v%d %q: %v", e.Version, e.Kind, e.Err)
	case e.Kind == "":
		return fmt.Sprintf("conversation codec: unsupported version %d", e.Version)
	default:
		return fmt.Sprintf("conversation codec: unknown kind %q (v%d)", e.Kind, e.Version)
	}
}

func (e *CodecError) Unwrap() error { return e.Err }

type envelope struct {
	Version      int    `json:"v"`
	Kind         Kind   `json:"kind"`
	Operation    string `json:"operation,omitempty"`
	FirstOperand *int64 `json:"first_operand,omitempty"`
}

// Encode serializes a state into a versioned, self-describing JSON record.
func Encode(s State) ([]byte, error) {
	env := envelope{Version: CodecVersion}
	switch st := Normalize(s).(type) {
	case Start:
		env.Kind = KindStart
	case AwaitingIntent:
		env.Kind = KindAwaitingIntent
	case AwaitingFirstOperand:
		env.Kind = KindAwaitingFirstOperand
		env.Operation = st.Operation
	case AwaitingSecondOperand:
		env.Kind = KindAwaitingSecondOperand
		env.Operation = st.Operation
		first := st.FirstOperand
		env.FirstOperand = &first
	default:
		return nil, &CodecError{Version: CodecVersion, Kind: st.Kind()}
	}
	return json.Marshal(env)
}

// Decode parses a record produced by Encode.
// An empty record decodes to Start.
func Decode(data []byte) (State, error) {
	if len(data) == 0 {
		return Start{}, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &CodecError{Err: err}
	}
	if env.Version != CodecVersion {
		return nil, &CodecError{Version: env.Version}
	}
	switch env.Kind {
	case KindStart:
		return Start{}, nil
	case KindAwaitingIntent:
		return AwaitingIntent{}, nil
	case KindAwaitingFirstOperand:
		return AwaitingFirstOperand{Operation: env.Operation}, nil
	case KindAwaitingSecondOperand:
		if env.FirstOperand == nil {
			return nil, &CodecError{Version: env.Version, Kind: env.Kind, Err: fmt.Errorf("missing first_operand")}
		}
		return AwaitingSecondOperand{FirstOperand: *env.FirstOperand, Operation: env.Operation}, nil
	}
	return nil, &CodecError{Version: env.Version, Kind: env.Kind}
}
