package rom

import (
	"bytes"
	"testing"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/window"
	"github.com/retroenv/retrogolib/assert"
)

func sum(data []byte) uint32 {
	var s uint32
	for _, b := range data {
		s += uint32(b)
	}
	return s
}

func writeImage(t *testing.T, d Descriptor, file []byte, offset, length uint32) ([]byte, Result) {
	t.Helper()
	var buf bytes.Buffer
	result, err := Write(&buf, d, window.New(bytes.NewReader(file), window.ROMWindowSize), offset, length)
	assert.NoError(t, err)
	return buf.Bytes(), result
}

func TestWriteSingleChip(t *testing.T) {
	d := Descriptor{Name: "F010_ALL.BIN", Size: 0x20000, BootArea: 0x8000, ChipCount: 1}
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	image, result := writeImage(t, d, payload, 0, uint32(len(payload)))
	assert.Equal(t, 0x20000, len(image))
	assert.Equal(t, uint32(0x20000), result.Written)
	assert.Equal(t, sum(image), result.Checksum)

	for i := range 0x20000 - 0x8000 {
		if image[i] != 0xFF {
			t.Fatalf("byte 0x%X of the leading fill is 0x%02X", i, image[i])
		}
	}
	assert.True(t, bytes.Equal(payload, image[0x18000:0x18004]))
	for i := 0x18004; i < 0x20000-VectorSize; i++ {
		if image[i] != 0xFF {
			t.Fatalf("byte 0x%X of the gap is 0x%02X", i, image[i])
		}
	}

	vector := image[0x20000-VectorSize:]
	expected := []byte{0xEA, 0x00, 0x00, 0x00, 0xF8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	assert.True(t, bytes.Equal(expected, vector))
	assert.Equal(t, uint16(0x10000-0x800), d.ResetSegment())
}

func TestWriteInterleaved(t *testing.T) {
	file := make([]byte, 0x40+0x9003)
	for i := range file {
		file[i] = byte(i*31 + i>>8)
	}
	const offset, length = 0x40, 0x9003

	tests := []struct {
		name  string
		chips uint32
	}{
		{name: "one chip", chips: 1},
		{name: "two chips", chips: 2},
		{name: "four chips", chips: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var images [][]byte
			var dataOffset uint32
			for index := range tt.chips {
				d := Descriptor{Name: "test", Size: 0x20000 / tt.chips, BootArea: 0x10000, ChipCount: tt.chips, ChipIndex: index}
				image, result := writeImage(t, d, file, offset, length)
				assert.Equal(t, int(d.Size), len(image))
				assert.Equal(t, sum(image), result.Checksum)
				images = append(images, image)
				dataOffset = d.LeadingFill()
			}

			payload, err := Deinterleave(images, dataOffset, length)
			assert.NoError(t, err)
			assert.True(t, bytes.Equal(file[offset:], payload))

			// the vector shares of all chips form the complete block
			var vector []byte
			for i := range VectorSize {
				image := images[uint32(i)%tt.chips]
				vector = append(vector, image[len(image)-VectorSize/int(tt.chips)+i/int(tt.chips)])
			}
			assert.Equal(t, byte(0xEA), vector[0])
			assert.Equal(t, byte(0x00), vector[3])
			assert.Equal(t, byte(0xF0), vector[4])
		})
	}
}

func TestDataLength(t *testing.T) {
	d := Descriptor{ChipCount: 2}
	assert.Equal(t, uint32(3), d.DataLength(5))
	d.ChipIndex = 1
	assert.Equal(t, uint32(2), d.DataLength(5))
	assert.Equal(t, uint32(0), d.DataLength(1))
}

func TestWriteTooLarge(t *testing.T) {
	d := Descriptor{Name: "small", Size: 0x100, BootArea: 0x40, ChipCount: 1}
	file := make([]byte, 0x40)

	_, err := Write(&bytes.Buffer{}, d, window.New(bytes.NewReader(file), window.ROMWindowSize), 0, 0x31)
	assert.Equal(t, fault.ImageTooLarge, fault.KindOf(err))

	var buf bytes.Buffer
	_, err = Write(&buf, d, window.New(bytes.NewReader(file), window.ROMWindowSize), 0, 0x30)
	assert.NoError(t, err)
	assert.Equal(t, 0x100, buf.Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		d     Descriptor
		valid bool
	}{
		{name: "valid", d: Descriptor{Size: 0x20000, BootArea: 0x8000, ChipCount: 2, ChipIndex: 1}, valid: true},
		{name: "three chips", d: Descriptor{Size: 0x20000, BootArea: 0x8000, ChipCount: 3}},
		{name: "no chips", d: Descriptor{Size: 0x20000, BootArea: 0x8000}},
		{name: "index out of range", d: Descriptor{Size: 0x20000, BootArea: 0x8000, ChipCount: 2, ChipIndex: 2}},
		{name: "boot area not paragraph aligned", d: Descriptor{Size: 0x20000, BootArea: 0x8008, ChipCount: 1}},
		{name: "boot area larger than ROM", d: Descriptor{Size: 0x4000, BootArea: 0x8000, ChipCount: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDeinterleaveShortImage(t *testing.T) {
	_, err := Deinterleave([][]byte{{1, 2}, {3}}, 0, 4)
	assert.Equal(t, fault.VerificationFailed, fault.KindOf(err))

	_, err = Deinterleave(nil, 0, 1)
	assert.Error(t, err)
}

func TestIntelHexRoundTrip(t *testing.T) {
	d := Descriptor{Name: "F010_ALL.BIN", Size: 0x20000, BootArea: 0x8000, ChipCount: 1}
	image, _ := writeImage(t, d, []byte{0x90, 0x90, 0xF4}, 0, 3)

	var buf bytes.Buffer
	assert.NoError(t, WriteIntelHex(&buf, image, 0))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(":00000001FF\n")) ||
		bytes.HasSuffix(buf.Bytes(), []byte(":00000001FF\r\n")))

	decoded, err := ReadIntelHex(bytes.NewReader(buf.Bytes()), 0, d.Size)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(image, decoded))
}
