package relocation

import (
	"bytes"
	"testing"

	"github.com/retroenv/mzrom/internal/mz"
	"github.com/retroenv/mzrom/internal/mz/mztest"
	"github.com/retroenv/mzrom/internal/window"
	"github.com/retroenv/retrogolib/assert"
)

func TestLinear(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint32
		expected uint32
	}{
		{name: "offset only", raw: 0x00001234, expected: 0x1234},
		{name: "segment only", raw: 0x00010000, expected: 0x10},
		{name: "both", raw: 0x0123_0004, expected: 0x1234},
		{name: "maximum", raw: 0xFFFF_FFFF, expected: 0x10FFEF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Linear(tt.raw))
			assert.Equal(t, tt.expected, Entry(tt.raw).Linear())
		})
	}
}

func TestPackRoundTrip(t *testing.T) {
	for segment := uint32(0); segment <= 0xFFFF; segment += 0x0FF1 {
		for offset := uint32(0); offset <= 0xFFFF; offset += 0x0F3D {
			entry := Pack(uint16(segment), uint16(offset))
			assert.Equal(t, uint32(entry), segment<<16|offset)
			assert.Equal(t, entry, Pack(entry.Segment(), entry.Offset()))
			assert.Equal(t, segment<<4+offset, entry.Linear())
			assert.Equal(t, segment<<4+offset, Linear(uint32(entry)))
		}
	}
}

func TestEntryString(t *testing.T) {
	assert.Equal(t, "0123:0004", Pack(0x123, 4).String())
}

func TestReadTable(t *testing.T) {
	relocations := make([]uint32, 3000)
	for i := range relocations {
		relocations[i] = uint32(i)<<16 | uint32(i*2)
	}
	data := mztest.Image{Payload: make([]byte, 32), Relocations: relocations}.Build()

	r := window.New(bytes.NewReader(data), window.HexWindowSize)
	header, err := r.Read(0, mz.HeaderSize)
	assert.NoError(t, err)
	d, err := mz.Parse(header, int64(len(data)), mz.HexPolicy)
	assert.NoError(t, err)

	entries, err := ReadTable(r, d)
	assert.NoError(t, err)
	assert.Len(t, entries, 3000)
	assert.Equal(t, Pack(0, 0), entries[0])
	assert.Equal(t, Pack(2999, 5998), entries[2999])
}
