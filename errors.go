package diesel

import (
	"fmt"

	"github.com/pkg/errors"
)

// Precondition failures. They are always checked and returned wrapped with
// the values involved; match them with errors.Is.
var (
	ErrCapacity       = errors.New("diesel: data exceeds capacity")
	ErrLayerRange     = errors.New("diesel: array layer out of range")
	ErrLayout         = errors.New("diesel: image is in the wrong layout")
	ErrNotHostVisible = errors.New("diesel: memory is not host visible")

	// ErrInvalidBytecode is matched by every *BytecodeError.
	ErrInvalidBytecode = errors.New("diesel: invalid shader bytecode")
)

// BytecodeError describes shader bytecode that failed validation.
type BytecodeError struct {
	Len    int
	Magic  uint32
	Reason string
}

func (e *BytecodeError) Error() string {
	if e.Reason == "bad magic" {
		return fmt.Sprintf("diesel: invalid shader bytecode: bad magic %#08x", e.Magic)
	}
	return fmt.Sprintf("diesel: invalid shader bytecode: %s (%d bytes)", e.Reason, e.Len)
}

func (e *BytecodeError) Unwrap() error { return ErrInvalidBytecode }

// ModeError reports an unknown enum string in a shader descriptor.
type ModeError struct {
	Field string
	Value string
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("diesel: unknown %s mode %q", e.Field, e.Value)
}

// orPanic aborts on driver failures. There is no recovery from device loss
// or memory exhaustion at this layer.
func orPanic(err error, what string) {
	if err != nil {
		panic(errors.Wrap(err, what))
	}
}
