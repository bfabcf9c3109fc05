// Package mz decodes and validates the header of MZ linked executables.
package mz

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/retroenv/mzrom/internal/fault"
)

const (
	// Magic is the "MZ" signature as a little-endian word.
	Magic = 0x5A4D

	// HeaderSize is the number of bytes that have to be read to decode the header.
	HeaderSize = 28

	pageSize      = 512
	paragraphSize = 16

	// defaultExtraParagraphs is the minimum stack of 256 bytes assumed for flat binaries.
	defaultExtraParagraphs = 0x10
)

// header is the on-disk layout of the fixed part of the executable header.
type header struct {
	Magic            uint16
	BytesLastPage    uint16 // modulo 512
	PagesInFile      uint16
	Relocations      uint16
	HeaderParagraphs uint16
	ExtraParagraphs  uint16
	MaxParagraphs    uint16
	StackSegment     uint16
	StackOffset      uint16
	Checksum         uint16
	EntryOffset      uint16
	EntrySegment     uint16
	RelocationTable  uint16
	Overlay          uint16
}

// Policy selects the optional validation steps that depend on the firmware class.
type Policy struct {
	MaxRelocations   int  // 0 means unlimited
	RequireZeroEntry bool // entry point has to be 0:0
}

var (
	// MonitorPolicy is used for monitor programs that get burned into ROM.
	MonitorPolicy = Policy{MaxRelocations: 1, RequireZeroEntry: true}
	// HexPolicy is used for the hex encoder, which supports any number of relocations.
	HexPolicy = Policy{}
)

// Descriptor is the canonical description of a loadable image.
type Descriptor struct {
	Magic            uint16
	TotalLength      uint32 // image length in bytes including the header
	HeaderParagraphs uint16

	EntrySegment uint16
	EntryOffset  uint16
	StackSegment uint16
	StackOffset  uint16

	MinExtraParagraphs uint16

	RelocationTableOffset uint32
	RelocationCount       uint16
}

// PayloadOffset returns the file offset of the first program byte.
func (d *Descriptor) PayloadOffset() uint32 {
	return uint32(d.HeaderParagraphs) * paragraphSize
}

// PayloadLength returns the number of program bytes following the header.
func (d *Descriptor) PayloadLength() uint32 {
	return d.TotalLength - d.PayloadOffset()
}

// TotalLength computes the image length from the page count and the last page remainder.
func TotalLength(pages, lastPageBytes uint16) uint32 {
	return uint32(pages)*pageSize - (pageSize-uint32(lastPageBytes))%pageSize
}

// Parse decodes the header bytes and validates them against the file length and the policy.
// The first failing check determines the returned error.
func Parse(data []byte, fileLength int64, policy Policy) (*Descriptor, error) {
	if len(data) < 2 || binary.LittleEndian.Uint16(data) != Magic {
		var magic uint16
		if len(data) >= 2 {
			magic = binary.LittleEndian.Uint16(data)
		}
		return nil, fault.Newf(fault.InvalidFormat, "invalid EXE signature 0x%04X", magic)
	}
	if len(data) < HeaderSize {
		return nil, fault.New(fault.InvalidFormat, "header too short").
			WithSizes(HeaderSize, uint64(len(data)))
	}

	var h header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("decoding header: %w", err)
	}

	d := &Descriptor{
		Magic:                 h.Magic,
		TotalLength:           TotalLength(h.PagesInFile, h.BytesLastPage),
		HeaderParagraphs:      h.HeaderParagraphs,
		EntrySegment:          h.EntrySegment,
		EntryOffset:           h.EntryOffset,
		StackSegment:          h.StackSegment,
		StackOffset:           h.StackOffset,
		MinExtraParagraphs:    h.ExtraParagraphs,
		RelocationTableOffset: uint32(h.RelocationTable),
		RelocationCount:       h.Relocations,
	}

	if fileLength < 0 || int64(d.TotalLength) > fileLength {
		return nil, fault.New(fault.TruncatedFile, "declared image length exceeds file length").
			WithSizes(uint64(d.TotalLength), uint64(max(fileLength, 0)))
	}
	if d.PayloadOffset() > d.TotalLength {
		return nil, fault.New(fault.InvalidFormat, "header is larger than the image").
			WithSizes(uint64(d.TotalLength), uint64(d.PayloadOffset()))
	}
	if policy.MaxRelocations > 0 && int(d.RelocationCount) > policy.MaxRelocations {
		return nil, fault.Newf(fault.UnsupportedRelocationCount, "more than %d relocations", policy.MaxRelocations).
			WithSizes(uint64(policy.MaxRelocations), uint64(d.RelocationCount))
	}
	if policy.RequireZeroEntry && (d.EntrySegment != 0 || d.EntryOffset != 0) {
		return nil, fault.Newf(fault.InvalidEntryPoint, "program start is %04X:%04X, not at 0:0",
			d.EntrySegment, d.EntryOffset)
	}

	return d, nil
}

// ComDescriptor describes a .com file of the given size. It is loaded at offset 0x100 of
// the segment below the load segment, like DOS does it.
func ComDescriptor(size uint32) *Descriptor {
	return &Descriptor{
		TotalLength:        size,
		EntrySegment:       0xFFF0,
		EntryOffset:        0x100,
		MinExtraParagraphs: defaultExtraParagraphs,
	}
}

// BinDescriptor describes a raw binary of the given size that starts executing at 0:0.
func BinDescriptor(size uint32) *Descriptor {
	return &Descriptor{
		TotalLength:        size,
		MinExtraParagraphs: defaultExtraParagraphs,
	}
}
