package window

import (
	"bytes"
	"errors"
	"testing"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/retrogolib/assert"
)

type countingReader struct {
	*bytes.Reader
	reads int
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.Reader.ReadAt(p, off)
}

func sequence(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestReadResidentFile(t *testing.T) {
	data := sequence(3000)
	src := &countingReader{Reader: bytes.NewReader(data)}
	r := New(src, HexWindowSize)

	got, err := r.Read(0, 28)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[:28], got))
	assert.True(t, r.Resident())

	got, err = r.Read(2900, 100)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[2900:], got))
	assert.Equal(t, 1, src.reads)
	assert.True(t, bytes.Equal(data, r.Bytes()))
}

func TestReadReturnsCopy(t *testing.T) {
	data := sequence(100)
	r := New(bytes.NewReader(data), SectorSize)

	first, err := r.Read(0, 4)
	assert.NoError(t, err)
	first[0] = 0xAA

	second, err := r.Read(0, 4)
	assert.NoError(t, err)
	assert.Equal(t, data[0], second[0])
}

func TestReadFullWindow(t *testing.T) {
	data := sequence(4096)
	r := New(bytes.NewReader(data), 1024)

	got, err := r.Read(1024, 1024)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[1024:2048], got))
}

func TestLoadAll(t *testing.T) {
	data := sequence(1056)
	src := &countingReader{Reader: bytes.NewReader(data)}
	r := New(src, HexWindowSize)

	// a first read above the first sector anchors the window there
	_, err := r.Read(0x200, 16)
	assert.NoError(t, err)
	assert.False(t, r.Resident())

	resident, err := r.LoadAll()
	assert.NoError(t, err)
	assert.True(t, resident)
	assert.True(t, bytes.Equal(data, r.Bytes()))
	assert.Equal(t, 2, src.reads)

	resident, err = r.LoadAll()
	assert.NoError(t, err)
	assert.True(t, resident)
	assert.Equal(t, 2, src.reads)

	large := New(bytes.NewReader(sequence(4096)), 1024)
	resident, err = large.LoadAll()
	assert.NoError(t, err)
	assert.False(t, resident)
}

func TestReadSlidingWindow(t *testing.T) {
	data := sequence(4096)
	src := &countingReader{Reader: bytes.NewReader(data)}
	r := New(src, 1024)

	got, err := r.Read(0, 16)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[:16], got))
	assert.False(t, r.Resident())
	assert.True(t, r.Bytes() == nil)

	// miss re-anchors to the sector boundary below the offset
	got, err = r.Read(1500, 300)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[1500:1800], got))
	assert.Equal(t, 2, src.reads)
	assert.Equal(t, uint32(1024), r.anchor)

	// hit inside the current window
	_, err = r.Read(1100, 400)
	assert.NoError(t, err)
	assert.Equal(t, 2, src.reads)

	// backwards miss
	got, err = r.Read(10, 20)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(data[10:30], got))
	assert.Equal(t, 3, src.reads)
}

func TestReadErrors(t *testing.T) {
	t.Run("beyond end of file", func(t *testing.T) {
		r := New(bytes.NewReader(sequence(600)), 1024)
		_, err := r.Read(500, 200)
		assert.Error(t, err)
		assert.Equal(t, fault.ReadError, fault.KindOf(err))
	})

	t.Run("miss after resident load", func(t *testing.T) {
		r := New(bytes.NewReader(sequence(100)), 1024)
		_, err := r.Read(0, 10)
		assert.NoError(t, err)
		_, err = r.Read(90, 20)
		assert.ErrorContains(t, err, "previous read failed")
	})

	t.Run("request larger than window", func(t *testing.T) {
		r := New(bytes.NewReader(sequence(4096)), 1024)
		_, err := r.Read(0, 1025)
		assert.Equal(t, fault.ReadError, fault.KindOf(err))
	})

	t.Run("request not covered after refill", func(t *testing.T) {
		r := New(bytes.NewReader(sequence(4096)), 1024)
		_, err := r.Read(600, 1000)
		assert.ErrorContains(t, err, "file read failed")
	})

	t.Run("source failure", func(t *testing.T) {
		r := New(failingReader{}, 1024)
		_, err := r.Read(0, 1)
		assert.Equal(t, fault.ReadError, fault.KindOf(err))
		assert.True(t, errors.Is(err, errBroken))
	})
}

var errBroken = errors.New("broken")

type failingReader struct{}

func (failingReader) ReadAt([]byte, int64) (int, error) {
	return 0, errBroken
}
