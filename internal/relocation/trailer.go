package relocation

import (
	"encoding/binary"

	"github.com/retroenv/mzrom/internal/hexrecord"
)

// Strategy encodes a relocation trailer through the record encoder, continuing
// at the current cursor.
type Strategy interface {
	Encode(enc *hexrecord.Encoder) error
}

// trailer stages 32 bit values into full lines of data records.
type trailer struct {
	enc *hexrecord.Encoder
	buf []byte
}

func newTrailer(enc *hexrecord.Encoder) *trailer {
	return &trailer{
		enc: enc,
		buf: make([]byte, 0, enc.LineWidth()),
	}
}

func (t *trailer) put(value uint32) error {
	t.buf = binary.LittleEndian.AppendUint32(t.buf, value)
	if len(t.buf) < cap(t.buf) {
		return nil
	}

	err := t.enc.EmitData(t.buf)
	t.buf = t.buf[:0]
	return err
}

// close completes a partial last line with the pad value.
func (t *trailer) close(pad uint32) error {
	for len(t.buf) > 0 {
		if err := t.put(pad); err != nil {
			return err
		}
	}
	return nil
}
