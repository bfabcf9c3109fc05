// Package window implements a sector aligned read cache over a source file.
package window

import (
	"errors"
	"io"

	"github.com/retroenv/mzrom/internal/fault"
)

const (
	// SectorSize is the alignment that every refill is anchored to.
	SectorSize = 512

	// HexWindowSize is the cache capacity used by the hex encoder.
	HexWindowSize = 0xA000
	// ROMWindowSize is the cache capacity used by the ROM image splitter,
	// allowing reads of up to 16K at any offset.
	ROMWindowSize = 0x4200
)

// Reader presents bounded random offset reads through a fixed size window.
type Reader struct {
	src    io.ReaderAt
	buf    []byte
	anchor uint32 // file offset of buf[0]
	size   int    // valid bytes in buf

	resident bool
}

// New returns a reader with a window of the given capacity, rounded up to a full sector.
func New(src io.ReaderAt, capacity int) *Reader {
	if capacity < SectorSize {
		capacity = SectorSize
	}
	capacity = (capacity + SectorSize - 1) &^ (SectorSize - 1)
	return &Reader{
		src: src,
		buf: make([]byte, capacity),
	}
}

// Read returns a copy of size bytes at the given file offset. The window is
// re-anchored on a miss, a request that can not be satisfied after the refill
// returns a ReadError.
func (r *Reader) Read(offset uint32, size int) ([]byte, error) {
	data, err := r.view(offset, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, data)
	return out, nil
}

// Resident reports whether the whole file has been loaded into the window.
func (r *Reader) Resident() bool {
	return r.resident
}

// Bytes returns the complete file if it is resident, nil otherwise.
// The returned slice is owned by the reader and must not be modified.
func (r *Reader) Bytes() []byte {
	if !r.resident {
		return nil
	}
	return r.buf[:r.size]
}

// LoadAll anchors the window at the start of the file and reports whether the
// whole file fits into it. Later reads are served from the loaded file.
func (r *Reader) LoadAll() (bool, error) {
	if r.resident {
		return true, nil
	}
	if err := r.refill(0); err != nil {
		return false, err
	}
	return r.resident, nil
}

func (r *Reader) view(offset uint32, size int) ([]byte, error) {
	if size < 0 || size > len(r.buf) {
		return nil, fault.New(fault.ReadError, "read larger than the window").
			AtOffset(offset).WithSizes(uint64(len(r.buf)), uint64(max(size, 0)))
	}

	if !r.contains(offset, size) {
		if r.resident {
			return nil, fault.New(fault.ReadError, "previous read failed to return full set of bytes").
				AtOffset(offset).WithSizes(uint64(size), 0)
		}
		if err := r.refill(offset); err != nil {
			return nil, err
		}
		if !r.contains(offset, size) {
			available := max(int64(r.anchor)+int64(r.size)-int64(offset), 0)
			return nil, fault.New(fault.ReadError, "file read failed").
				AtOffset(offset).WithSizes(uint64(size), uint64(available))
		}
	}

	start := int(offset - r.anchor)
	return r.buf[start : start+size], nil
}

func (r *Reader) contains(offset uint32, size int) bool {
	if offset < r.anchor {
		return false
	}
	return uint64(offset)+uint64(size) <= uint64(r.anchor)+uint64(r.size)
}

func (r *Reader) refill(offset uint32) error {
	r.anchor = offset &^ (SectorSize - 1)

	n, err := r.src.ReadAt(r.buf, int64(r.anchor))
	if err != nil && !errors.Is(err, io.EOF) {
		r.size = 0
		return fault.Wrap(fault.ReadError, err, "reading source file").AtOffset(r.anchor)
	}
	r.size = n
	r.resident = r.anchor == 0 && n < len(r.buf)
	return nil
}
