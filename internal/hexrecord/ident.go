package hexrecord

import "encoding/binary"

// IdentificationTag marks a relocatable hex file for the monitor loader.
const IdentificationTag = "AMD LPD "

// IdentificationLength is the payload length of the identification record.
const IdentificationLength = 2 + len(IdentificationTag) + 2 + 2 + 2 + 4 + 4 + 4

// Identification is the proprietary start of file record of relocatable hex files.
// It is carried in a segment base record with segment 0 followed by the tag.
type Identification struct {
	Paragraphs    uint16 // memory the loader has to allocate
	StackSegment  uint16
	StackOffset   uint16
	ProgramLength uint32 // line aligned program length
	RelocationEnd uint32 // end of the line aligned relocation list
}

// EmitIdentification writes the identification record.
func (e *Encoder) EmitIdentification(id Identification) error {
	data := make([]byte, IdentificationLength)
	copy(data[2:], IdentificationTag)
	n := 2 + len(IdentificationTag)
	binary.BigEndian.PutUint16(data[n:], id.Paragraphs)
	binary.BigEndian.PutUint16(data[n+2:], id.StackSegment)
	binary.BigEndian.PutUint16(data[n+4:], id.StackOffset)
	binary.BigEndian.PutUint32(data[n+6:], id.ProgramLength)
	binary.BigEndian.PutUint32(data[n+10:], id.RelocationEnd)
	binary.BigEndian.PutUint32(data[n+14:], id.RelocationEnd)

	return e.EmitRecord(Record{Type: SegmentBase, Data: data})
}
