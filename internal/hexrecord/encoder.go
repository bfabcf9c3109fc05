package hexrecord

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/retroenv/mzrom/internal/fault"
)

const (
	// DefaultLineWidth is the number of data bytes per record.
	DefaultLineWidth = 32
	// DefaultSegmentStride is added to the segment when the offset wraps.
	DefaultSegmentStride = 0x1000

	minLineWidth = 16
	maxLineWidth = 128

	farJumpOpcode = 0xEA
)

// Option configures an Encoder.
type Option func(*Encoder)

// WithLineWidth sets the maximum number of data bytes per record.
// The width has to be a power of two between 16 and 128.
func WithLineWidth(width int) Option {
	return func(e *Encoder) {
		e.lineWidth = width
	}
}

// WithSegmentStride sets the segment increment applied on an offset wrap.
func WithSegmentStride(stride uint16) Option {
	return func(e *Encoder) {
		e.stride = stride
	}
}

// Encoder writes hex records and owns the output cursor.
type Encoder struct {
	w         *bufio.Writer
	lineWidth int
	stride    uint16

	origin uint16 // segment that Seek positions are relative to
	cursor Cursor

	records int
	err     error
}

// NewEncoder returns an encoder writing to w, starting at cursor 0000:0000.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{
		w:         bufio.NewWriter(w),
		lineWidth: DefaultLineWidth,
		stride:    DefaultSegmentStride,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.lineWidth < minLineWidth || e.lineWidth > maxLineWidth || e.lineWidth&(e.lineWidth-1) != 0 {
		panic(fmt.Sprintf("invalid hex line width %d", e.lineWidth))
	}
	return e
}

// LineWidth returns the maximum number of data bytes per record.
func (e *Encoder) LineWidth() int {
	return e.lineWidth
}

// Cursor returns the address of the next data record.
func (e *Encoder) Cursor() Cursor {
	return e.cursor
}

// Records returns the number of records written.
func (e *Encoder) Records() int {
	return e.records
}

// EmitRecord writes a single record. A payload wider than the line width is a
// programming error and panics.
func (e *Encoder) EmitRecord(r Record) error {
	if len(r.Data) > e.lineWidth {
		panic(fmt.Sprintf("hex record payload of %d bytes exceeds line width %d", len(r.Data), e.lineWidth))
	}
	if e.err != nil {
		return e.err
	}

	if _, err := fmt.Fprintf(e.w, "%s\n", r); err != nil {
		e.err = fault.Wrap(fault.WriteError, err, "writing hex record")
		return e.err
	}
	e.records++
	return nil
}

// EmitData writes the data as records at the cursor, one line width at a time.
// A record never crosses a 64K boundary; when the offset wraps the segment is
// advanced by the stride and a segment base record is written.
func (e *Encoder) EmitData(data []byte) error {
	for len(data) > 0 {
		room := 0x10000 - int(e.cursor.Offset)
		n := min(e.lineWidth, len(data), room)

		if err := e.EmitRecord(Record{Type: Data, Address: e.cursor.Offset, Data: data[:n]}); err != nil {
			return err
		}
		if err := e.advance(n); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// EmitSegmentBase writes a segment base record. The cursor is not changed.
func (e *Encoder) EmitSegmentBase(segment uint16) error {
	return e.EmitRecord(Record{Type: SegmentBase, Data: be16(segment)})
}

// EmitEndOfFile writes the end of file record.
func (e *Encoder) EmitEndOfFile() error {
	return e.EmitRecord(Record{Type: EndOfFile})
}

// EmitStartAddress writes the program entry point.
func (e *Encoder) EmitStartAddress(segment, offset uint16) error {
	data := append(be16(segment), be16(offset)...)
	return e.EmitRecord(Record{Type: StartAddress, Data: data})
}

// EmitFarJump writes a far jump instruction to dstSeg:dstOff located at srcSeg:srcOff.
// The cursor is left behind the instruction.
func (e *Encoder) EmitFarJump(srcSeg, srcOff, dstSeg, dstOff uint16) error {
	if err := e.EmitSegmentBase(srcSeg); err != nil {
		return err
	}

	data := []byte{farJumpOpcode, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(data[1:], dstOff)
	binary.LittleEndian.PutUint16(data[3:], dstSeg)
	if err := e.EmitRecord(Record{Type: Data, Address: srcOff, Data: data}); err != nil {
		return err
	}

	e.cursor = Cursor{Segment: srcSeg, Offset: srcOff + uint16(len(data))}
	return nil
}

// SetSegment writes a segment base record and moves the cursor to segment:0000.
// Later Seek positions are relative to this segment.
func (e *Encoder) SetSegment(segment uint16) error {
	if err := e.EmitSegmentBase(segment); err != nil {
		return err
	}
	e.origin = segment
	e.cursor = Cursor{Segment: segment}
	return nil
}

// Seek moves the cursor to the linear position relative to the origin segment,
// writing a segment base record if the segment changes.
func (e *Encoder) Seek(position uint32) error {
	segment := e.origin + uint16(position>>16)*e.stride
	if segment != e.cursor.Segment {
		if err := e.EmitSegmentBase(segment); err != nil {
			return err
		}
	}
	e.cursor = Cursor{Segment: segment, Offset: uint16(position)}
	return nil
}

// Position returns the cursor position relative to the origin segment.
func (e *Encoder) Position() uint32 {
	wraps := uint32(e.cursor.Segment-e.origin) / uint32(e.stride)
	return wraps<<16 | uint32(e.cursor.Offset)
}

// Align advances the cursor to the next line width boundary.
func (e *Encoder) Align() error {
	rem := int(e.cursor.Offset) & (e.lineWidth - 1)
	if rem == 0 {
		return nil
	}
	return e.advance(e.lineWidth - rem)
}

// Flush writes any buffered output.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = fault.Wrap(fault.WriteError, err, "flushing hex output")
		return e.err
	}
	return nil
}

func (e *Encoder) advance(n int) error {
	next := int(e.cursor.Offset) + n
	if next < 0x10000 {
		e.cursor.Offset = uint16(next)
		return nil
	}

	e.cursor.Offset = 0
	e.cursor.Segment += e.stride
	return e.EmitSegmentBase(e.cursor.Segment)
}

func be16(value uint16) []byte {
	return []byte{byte(value >> 8), byte(value)}
}
