package diesel

import (
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/andewx/diesel/driver"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

// ParseBytecode reinterprets code as a stream of 32-bit words. Modules
// written with the other byte order are swapped word by word. Input that
// is not a whole number of words or does not start with the magic number
// returns a *BytecodeError; it never panics.
func ParseBytecode(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, &BytecodeError{Len: len(code), Reason: "length not a multiple of 4"}
	}
	if len(code) < 4 {
		return nil, &BytecodeError{Len: len(code), Reason: "missing magic number"}
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	switch {
	case words[0] == SpirvMagic:
	case bits.ReverseBytes32(words[0]) == SpirvMagic:
		for i, w := range words {
			words[i] = bits.ReverseBytes32(w)
		}
	default:
		return nil, &BytecodeError{Len: len(code), Magic: words[0], Reason: "bad magic"}
	}
	return words, nil
}

// CreateShaderModule validates code and creates a shader module from it.
// Invalid bytecode is returned as a *BytecodeError; a driver failure is
// fatal.
func (d *Device) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	words, err := ParseBytecode(code)
	if err != nil {
		return 0, err
	}
	m, err := d.drv.CreateShaderModule(words)
	if errors.Is(err, driver.ErrInvalidUsage) {
		return 0, errors.Wrap(err, "diesel: create shader module")
	}
	orPanic(err, "diesel: create shader module")
	return m, nil
}
