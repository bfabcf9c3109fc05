package relocation

import (
	"encoding/binary"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/hexrecord"
)

const (
	// maxDGROUPTarget is the highest relocation target supported in fixed address mode.
	maxDGROUPTarget = 0x7FFF

	terminator = 0xFFFFFFFF
)

// DGROUP writes relocations for programs located at a fixed address whose only
// relocatable part is the data segment. Every relocation has to target a word
// inside the data segment that holds either 0 or the data segment selector.
type DGROUP struct {
	entries  []Entry
	payload  []byte
	resident bool
}

// NewDGROUP returns the DGROUP strategy. The payload is the complete program
// and resident tells whether the whole file could be loaded into memory.
func NewDGROUP(entries []Entry, payload []byte, resident bool) *DGROUP {
	return &DGROUP{
		entries:  entries,
		payload:  payload,
		resident: resident,
	}
}

// Selector returns the single non-zero data segment selector found at the
// relocation targets.
func (d *DGROUP) Selector() (uint16, error) {
	if !d.resident {
		return 0, fault.New(fault.RelocationTargetOutOfRange,
			"relocations are only processed if the file fits in memory")
	}

	var selector uint16
	for _, entry := range d.entries {
		target := entry.Linear()
		value, err := d.word(target)
		if err != nil {
			return 0, err
		}
		if value == 0 {
			continue
		}
		if selector == 0 {
			selector = value
			continue
		}
		if value != selector {
			return 0, fault.New(fault.AmbiguousDataSegment, "more than one target data segment for relocation").
				AtOffset(target).WithSizes(uint64(selector), uint64(value))
		}
	}

	if selector == 0 {
		return 0, fault.New(fault.NoDataSegment, "cannot tell where DGROUP starts")
	}
	return selector, nil
}

// Encode writes the table size, the DGROUP relative relocations and the terminator
// behind the program data.
func (d *DGROUP) Encode(enc *hexrecord.Encoder) error {
	if !d.resident {
		return fault.New(fault.RelocationTargetOutOfRange,
			"relocations are only processed if the file fits in memory")
	}
	length := uint32(len(d.payload))
	if length&0xF != 0 {
		return fault.New(fault.UnalignedOutput, "relocations are only processed if data ends on a paragraph boundary").
			WithSizes(uint64(length+0xF)&^0xF, uint64(length))
	}

	selector, err := d.Selector()
	if err != nil {
		return err
	}
	dgroup := uint32(selector) << 4

	if err := enc.Seek(length); err != nil {
		return err
	}

	t := newTrailer(enc)
	if err := t.put(uint32(len(d.entries))*4 + 4 - 1); err != nil {
		return err
	}

	for _, entry := range d.entries {
		target := entry.Linear()
		value, err := d.word(target)
		if err != nil {
			return err
		}
		if target < dgroup {
			return fault.Newf(fault.CodeSegmentRelocation, "attempt to relocate item in code segment at %04X", target).
				AtOffset(target)
		}

		relocation := target - dgroup
		if value != 0 {
			relocation += uint32(value) << 16
		}
		if err := t.put(relocation); err != nil {
			return err
		}
	}

	return t.close(terminator)
}

func (d *DGROUP) word(target uint32) (uint16, error) {
	if target > maxDGROUPTarget {
		return 0, fault.New(fault.RelocationTargetOutOfRange, "relocation target > 32K").AtOffset(target)
	}
	if uint64(target)+2 > uint64(len(d.payload)) {
		return 0, fault.New(fault.RelocationTargetOutOfRange, "relocation target outside of the program").
			AtOffset(target).WithSizes(uint64(len(d.payload)), uint64(target)+2)
	}
	return binary.LittleEndian.Uint16(d.payload[target:]), nil
}
