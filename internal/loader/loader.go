// Package loader handles source file loading operations.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/mzrom/internal/detector"
	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/mz"
	"github.com/retroenv/mzrom/internal/window"
)

// Image is an opened source file with its decoded descriptor.
type Image struct {
	Path       string
	Kind       detector.Kind
	Descriptor *mz.Descriptor
	Reader     *window.Reader

	closer io.Closer
}

// Close releases the underlying file.
func (im *Image) Close() error {
	if im.closer == nil {
		return nil
	}
	return im.closer.Close()
}

// Loader handles loading source files from disk.
type Loader struct {
	policy     mz.Policy
	windowSize int
}

// New creates a new loader that validates executables with the given policy
// and reads them through a window of the given size.
func New(policy mz.Policy, windowSize int) *Loader {
	return &Loader{
		policy:     policy,
		windowSize: windowSize,
	}
}

// Load opens the file and decodes its descriptor based on the source kind.
// The caller has to close the returned image.
func (l *Loader) Load(path string, kind detector.Kind) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.ReadError, err, fmt.Sprintf("opening file %s", path))
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fault.Wrap(fault.ReadError, err, fmt.Sprintf("reading file info %s", path))
	}

	im, err := l.load(file, info.Size(), kind)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	im.Path = path
	im.closer = file
	return im, nil
}

// LoadBytes decodes an in memory source file.
func (l *Loader) LoadBytes(data []byte, kind detector.Kind) (*Image, error) {
	return l.load(bytes.NewReader(data), int64(len(data)), kind)
}

func (l *Loader) load(src io.ReaderAt, size int64, kind detector.Kind) (*Image, error) {
	if size > int64(^uint32(0)) {
		return nil, fault.New(fault.InvalidFormat, "file too large").
			WithSizes(uint64(^uint32(0)), uint64(size))
	}

	var descriptor *mz.Descriptor
	switch kind {
	case detector.Bin:
		descriptor = mz.BinDescriptor(uint32(size))
	case detector.Com:
		descriptor = mz.ComDescriptor(uint32(size))
	case detector.Exe:
		header := make([]byte, min(mz.HeaderSize, size))
		n, err := src.ReadAt(header, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fault.Wrap(fault.ReadError, err, "reading header")
		}
		descriptor, err = mz.Parse(header[:n], size, l.policy)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported source kind %s", kind)
	}

	return &Image{
		Kind:       kind,
		Descriptor: descriptor,
		Reader:     window.New(src, l.windowSize),
	}, nil
}
