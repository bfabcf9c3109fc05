package rom

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// IntelHexLineLength is the number of data bytes per Intel HEX record.
const IntelHexLineLength = 32

// WriteIntelHex writes the image as Intel HEX, starting at the given device address.
func WriteIntelHex(w io.Writer, image []byte, base uint32) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(base, image); err != nil {
		return fmt.Errorf("adding image data: %w", err)
	}
	if err := mem.DumpIntelHex(w, IntelHexLineLength); err != nil {
		return fmt.Errorf("writing Intel HEX: %w", err)
	}
	return nil
}

// ReadIntelHex parses Intel HEX and returns size bytes starting at the given device
// address, with gaps filled by the erased value of the chip.
func ReadIntelHex(r io.Reader, base, size uint32) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("parsing Intel HEX: %w", err)
	}
	return mem.ToBinary(base, size, fillByte), nil
}
