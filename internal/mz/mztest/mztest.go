// Package mztest builds MZ executable images for tests.
package mztest

import "encoding/binary"

// Image describes an executable to build.
type Image struct {
	HeaderParagraphs uint16 // at least 2, defaults to 2
	Payload          []byte
	Relocations      []uint32 // packed offset | segment<<16
	EntrySegment     uint16
	EntryOffset      uint16
	StackSegment     uint16
	StackOffset      uint16
	ExtraParagraphs  uint16
	TableOffset      uint16 // file offset of the relocation table, defaults to 28
}

// Build returns the file bytes of the executable. The relocation table is placed
// directly behind the fixed header unless TableOffset is set, header paragraphs
// are raised until the table fits.
func (im Image) Build() []byte {
	headerParagraphs := max(im.HeaderParagraphs, 2)
	tableOffset := int(im.TableOffset)
	if tableOffset == 0 {
		tableOffset = 28
	}
	tableEnd := tableOffset + 4*len(im.Relocations)
	for int(headerParagraphs)*16 < tableEnd {
		headerParagraphs++
	}

	headerSize := int(headerParagraphs) * 16
	total := headerSize + len(im.Payload)
	data := make([]byte, total)

	put := func(offset int, value uint16) {
		binary.LittleEndian.PutUint16(data[offset:], value)
	}
	put(0, 0x5A4D)
	put(2, uint16(total%512))
	put(4, uint16((total+511)/512))
	put(6, uint16(len(im.Relocations)))
	put(8, headerParagraphs)
	put(10, im.ExtraParagraphs)
	put(12, 0xFFFF)
	put(14, im.StackSegment)
	put(16, im.StackOffset)
	put(20, im.EntryOffset)
	put(22, im.EntrySegment)
	put(24, uint16(tableOffset))

	for i, relocation := range im.Relocations {
		binary.LittleEndian.PutUint32(data[tableOffset+4*i:], relocation)
	}
	copy(data[headerSize:], im.Payload)
	return data
}
