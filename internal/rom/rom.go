// Package rom builds flat and interleaved ROM images with a reset vector at the top.
package rom

import (
	"bufio"
	"fmt"
	"io"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/window"
)

const (
	// VectorSize is the size of the reset vector block at the end of the boot area.
	VectorSize = 16

	fillByte      = 0xFF
	farJumpOpcode = 0xEA

	maxChips   = 16
	fillChunk  = 8192
	maxReadLen = window.ROMWindowSize - window.SectorSize
)

// Descriptor describes one physical ROM image of a board.
type Descriptor struct {
	Name      string // output file name
	Size      uint32 // size of the chip image in bytes
	BootArea  uint32 // size of the boot area at the top of the address space, all chips combined
	ChipCount uint32 // interleave factor
	ChipIndex uint32 // chip of the interleaved set that this image is for
}

// Validate checks the descriptor invariants.
func (d Descriptor) Validate() error {
	switch {
	case d.ChipCount == 0 || d.ChipCount > maxChips || d.ChipCount&(d.ChipCount-1) != 0:
		return fmt.Errorf("ROM %s: chip count %d is not a power of two up to %d", d.Name, d.ChipCount, maxChips)
	case d.ChipIndex >= d.ChipCount:
		return fmt.Errorf("ROM %s: chip index %d out of range", d.Name, d.ChipIndex)
	case d.BootArea < VectorSize || d.BootArea%VectorSize != 0:
		return fmt.Errorf("ROM %s: boot area 0x%X is not a multiple of %d", d.Name, d.BootArea, VectorSize)
	case d.BootArea > d.Size*d.ChipCount:
		return fmt.Errorf("ROM %s: boot area 0x%X exceeds ROM size 0x%X", d.Name, d.BootArea, d.Size)
	}
	return nil
}

// LeadingFill returns the number of unused bytes below the boot area of the chip.
func (d Descriptor) LeadingFill() uint32 {
	return d.Size - d.BootArea/d.ChipCount
}

// Capacity returns the number of program bytes that fit on the chip.
func (d Descriptor) Capacity() uint32 {
	return (d.BootArea - VectorSize) / d.ChipCount
}

// DataLength returns the number of program bytes of a payload of the given length
// that are stored on this chip.
func (d Descriptor) DataLength(length uint32) uint32 {
	return (length + d.ChipCount - 1 - d.ChipIndex) / d.ChipCount
}

// ResetSegment returns the segment that the reset vector jumps to, placing the
// boot area directly below the top of the 1MB address space.
func (d Descriptor) ResetSegment() uint16 {
	return 0 - uint16(d.BootArea/16)
}

// ResetVector returns the complete 16 byte reset vector block of an interleaved set:
// a far jump to ResetSegment:0000 padded with fill bytes.
func (d Descriptor) ResetVector() [VectorSize]byte {
	var block [VectorSize]byte
	for i := range block {
		block[i] = fillByte
	}
	segment := d.ResetSegment()
	block[0] = farJumpOpcode
	block[1] = 0
	block[2] = 0
	block[3] = byte(segment)
	block[4] = byte(segment >> 8)
	return block
}

// Source provides bounded reads of the executable file.
type Source interface {
	Read(offset uint32, size int) ([]byte, error)
}

// Result contains the statistics of a written image.
type Result struct {
	Written  uint32
	Checksum uint32 // sum of all written bytes, for operator verification only
}

// Write writes the image of the chip. The payload is read from src at the given
// offset and length. The image consists of fill bytes up to the boot area, the
// interleaved program bytes, fill bytes up to the reset vector and the share of
// the reset vector that belongs to the chip.
func Write(w io.Writer, d Descriptor, src Source, offset, length uint32) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}
	dataLength := d.DataLength(length)
	if dataLength > d.Capacity() {
		return Result{}, fault.Newf(fault.ImageTooLarge, "program does not fit into %s", d.Name).
			WithSizes(uint64(d.Capacity()), uint64(dataLength))
	}

	iw := &imageWriter{w: bufio.NewWriter(w)}
	if err := iw.fill(d.LeadingFill()); err != nil {
		return Result{}, err
	}
	if err := iw.data(d, src, offset+d.ChipIndex, dataLength); err != nil {
		return Result{}, err
	}
	if err := iw.fill(d.Capacity() - dataLength); err != nil {
		return Result{}, err
	}

	vector := d.ResetVector()
	share := make([]byte, 0, VectorSize/d.ChipCount)
	for i := range VectorSize / d.ChipCount {
		share = append(share, vector[i*d.ChipCount+d.ChipIndex])
	}
	if err := iw.write(share); err != nil {
		return Result{}, err
	}

	if err := iw.w.Flush(); err != nil {
		return Result{}, fault.Wrap(fault.WriteError, err, "writing ROM image")
	}
	return iw.result, nil
}

type imageWriter struct {
	w      *bufio.Writer
	result Result
}

func (iw *imageWriter) write(data []byte) error {
	n, err := iw.w.Write(data)
	for _, b := range data[:n] {
		iw.result.Checksum += uint32(b)
	}
	iw.result.Written += uint32(n)
	if err != nil {
		return fault.Wrap(fault.WriteError, err, "writing ROM image")
	}
	return nil
}

func (iw *imageWriter) fill(length uint32) error {
	var buf [fillChunk]byte
	for i := range buf {
		buf[i] = fillByte
	}
	for length > 0 {
		n := min(length, fillChunk)
		if err := iw.write(buf[:n]); err != nil {
			return err
		}
		length -= n
	}
	return nil
}

// data streams every ChipCount-th payload byte starting at offset.
func (iw *imageWriter) data(d Descriptor, src Source, offset, length uint32) error {
	maxChunk := uint32(maxReadLen) / d.ChipCount
	buf := make([]byte, maxChunk)

	for length > 0 {
		n := min(length, maxChunk)
		span := (n-1)*d.ChipCount + 1

		data, err := src.Read(offset, int(span))
		if err != nil {
			return fmt.Errorf("reading program data: %w", err)
		}
		for i := range n {
			buf[i] = data[i*d.ChipCount]
		}
		if err := iw.write(buf[:n]); err != nil {
			return err
		}

		offset += n * d.ChipCount
		length -= n
	}
	return nil
}

// Deinterleave rebuilds the payload of the given length from the images of all
// chips of an interleaved set, ordered by chip index.
func Deinterleave(images [][]byte, dataOffset, length uint32) ([]byte, error) {
	count := uint32(len(images))
	if count == 0 {
		return nil, fmt.Errorf("no images to deinterleave")
	}

	out := make([]byte, length)
	for i := range length {
		image := images[i%count]
		position := dataOffset + i/count
		if position >= uint32(len(image)) {
			return nil, fault.New(fault.VerificationFailed, "image too short").
				AtOffset(position).WithSizes(uint64(position)+1, uint64(len(image)))
		}
		out[i] = image[position]
	}
	return out, nil
}
