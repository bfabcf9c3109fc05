package hexrecord

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/retrogolib/assert"
)

func TestDecoderNext(t *testing.T) {
	dec := NewDecoder(strings.NewReader(":0400000312340100B2\r\n\n:00000001FF\n"))

	r, err := dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, StartAddress, r.Type)
	assert.Equal(t, 4, len(r.Data))
	assert.Equal(t, 1, dec.Line())

	r, err = dec.Next()
	assert.NoError(t, err)
	assert.Equal(t, EndOfFile, r.Type)
	assert.Equal(t, 3, dec.Line())

	_, err = dec.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "missing mark", input: "00000001FF", message: "missing record mark"},
		{name: "bad digits", input: ":0000000XFF", message: "decoding hex digits"},
		{name: "too short", input: ":0000", message: "record too short"},
		{name: "length mismatch", input: ":01000001FE", message: "record length mismatch"},
		{name: "checksum", input: ":00000001FE", message: "checksum mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(strings.NewReader(tt.input)).Next()
			assert.ErrorContains(t, err, tt.message)
			assert.Equal(t, fault.InvalidFormat, fault.KindOf(err))
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "segment base", SegmentBase.String())
	assert.Equal(t, "type 07", Type(7).String())
}
