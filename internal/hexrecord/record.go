// Package hexrecord encodes and decodes checksummed, line oriented hex records
// with segment based addressing.
package hexrecord

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Type is the record type field.
type Type byte

// Record types.
const (
	Data         Type = 0
	EndOfFile    Type = 1
	SegmentBase  Type = 2 // also used by the identification record
	StartAddress Type = 3
)

func (t Type) String() string {
	switch t {
	case Data:
		return "data"
	case EndOfFile:
		return "end of file"
	case SegmentBase:
		return "segment base"
	case StartAddress:
		return "start address"
	default:
		return fmt.Sprintf("type %02X", byte(t))
	}
}

// Record is a single hex record.
type Record struct {
	Type    Type
	Address uint16
	Data    []byte
}

// Bytes returns the binary form of the record: length, address, type, data and checksum.
func (r Record) Bytes() []byte {
	b := make([]byte, 0, 5+len(r.Data))
	b = append(b, byte(len(r.Data)), byte(r.Address>>8), byte(r.Address), byte(r.Type))
	b = append(b, r.Data...)
	return append(b, Checksum(b))
}

// Checksum returns the record checksum byte.
func (r Record) Checksum() byte {
	b := r.Bytes()
	return b[len(b)-1]
}

// String returns the text line of the record without line terminator.
func (r Record) String() string {
	return ":" + strings.ToUpper(hex.EncodeToString(r.Bytes()))
}

// Checksum returns the two's complement of the sum of all bytes, which makes
// the sum of a complete record including its checksum zero modulo 256.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

// Cursor is the segment:offset address of the next data record.
type Cursor struct {
	Segment uint16
	Offset  uint16
}

// Linear returns the 20 bit physical address of the cursor.
func (c Cursor) Linear() uint32 {
	return uint32(c.Segment)<<4 + uint32(c.Offset)
}

func (c Cursor) String() string {
	return fmt.Sprintf("%04X:%04X", c.Segment, c.Offset)
}
