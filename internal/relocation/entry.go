// Package relocation encodes the far pointer fixup table of an executable as a
// trailer behind the program data of a hex file.
package relocation

import (
	"encoding/binary"
	"fmt"

	"github.com/retroenv/mzrom/internal/mz"
)

// Entry is a far pointer stored as offset in the low word and segment in the high word.
type Entry uint32

// Pack returns the entry for segment:offset.
func Pack(segment, offset uint16) Entry {
	return Entry(uint32(segment)<<16 | uint32(offset))
}

// Linear converts a packed far pointer to its linear target.
func Linear(raw uint32) uint32 {
	return ((raw >> 16) << 4) + (raw & 0xFFFF)
}

// Segment returns the segment part of the pointer.
func (e Entry) Segment() uint16 {
	return uint16(e >> 16)
}

// Offset returns the offset part of the pointer.
func (e Entry) Offset() uint16 {
	return uint16(e)
}

// Linear returns the linear target of the pointer within the payload.
func (e Entry) Linear() uint32 {
	return Linear(uint32(e))
}

func (e Entry) String() string {
	return fmt.Sprintf("%04X:%04X", e.Segment(), e.Offset())
}

// Source provides bounded reads from the executable file.
type Source interface {
	Read(offset uint32, size int) ([]byte, error)
}

// tableBatch is the number of entries read at once, it keeps every read far below
// the window size of the file reader.
const tableBatch = 2048

// ReadTable reads the relocation table of the executable in table order.
func ReadTable(src Source, d *mz.Descriptor) ([]Entry, error) {
	entries := make([]Entry, 0, d.RelocationCount)
	offset := d.RelocationTableOffset

	for remaining := int(d.RelocationCount); remaining > 0; {
		n := min(remaining, tableBatch)
		data, err := src.Read(offset, n*4)
		if err != nil {
			return nil, fmt.Errorf("reading relocation table: %w", err)
		}
		for i := range n {
			entries = append(entries, Entry(binary.LittleEndian.Uint32(data[i*4:])))
		}
		offset += uint32(n * 4)
		remaining -= n
	}
	return entries, nil
}
