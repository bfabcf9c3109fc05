// Package detector handles source file detection.
package detector

import (
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/retrogolib/log"
)

// Kind is the format of a source file, derived from its extension.
type Kind int

const (
	Bin Kind = iota // raw binary starting at 0:0
	Com             // DOS .com file starting at FFF0:0100
	Exe             // MZ linked executable
)

func (k Kind) String() string {
	switch k {
	case Bin:
		return "bin"
	case Com:
		return "com"
	case Exe:
		return "exe"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Extension returns the file extension including the dot.
func (k Kind) Extension() string {
	return "." + k.String()
}

// HexSources is the probe order of the hex converter.
var HexSources = []Kind{Bin, Com, Exe}

// ROMSources is the probe order of the ROM image builder.
var ROMSources = []Kind{Exe}

// Detector handles source file detection from a file name stem.
type Detector struct {
	logger *log.Logger
	stat   func(name string) (os.FileInfo, error)
}

// New creates a new source file detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
		stat:   os.Stat,
	}
}

// Detect returns the first existing file of the form <stem><ext> for the given kinds
// in order.
func (d *Detector) Detect(stem string, kinds ...Kind) (string, Kind, error) {
	tried := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		name := stem + kind.Extension()
		info, err := d.stat(name)
		if err != nil || info.IsDir() {
			tried = append(tried, name)
			continue
		}

		d.logger.Debug("Detected source file",
			log.String("file", name),
			log.Stringer("kind", kind))
		return name, kind, nil
	}

	return "", 0, fault.Newf(fault.ReadError, "can not find %s", strings.Join(tried, " or "))
}
