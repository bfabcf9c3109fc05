// Package config handles application configuration and setup
package config

import (
	"github.com/retroenv/mzrom/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// Board is a ROM image file together with the boards that use it.
type Board struct {
	ROM    rom.Descriptor
	Boards string
}

const (
	romSize128K = 0x20000
	romSize256K = 0x40000
	romSize512K = 0x80000
	bootArea    = 0x8000
)

// Boards returns the ROM images that are generated for every monitor program.
func Boards() []Board {
	return []Board{
		{
			ROM:    rom.Descriptor{Name: "F010_ALL.BIN", Size: romSize128K, BootArea: bootArea, ChipCount: 1, ChipIndex: 0},
			Boards: "188ES, 188EM",
		},
		{
			ROM:    rom.Descriptor{Name: "F010_LOW.BIN", Size: romSize128K, BootArea: bootArea, ChipCount: 2, ChipIndex: 0},
			Boards: "186ES, 186EM",
		},
		{
			ROM:    rom.Descriptor{Name: "F010_HI.BIN", Size: romSize128K, BootArea: bootArea, ChipCount: 2, ChipIndex: 1},
			Boards: "186ES, 186EM",
		},
		{
			ROM:    rom.Descriptor{Name: "F200_ALL.BIN", Size: romSize256K, BootArea: bootArea, ChipCount: 1, ChipIndex: 0},
			Boards: "18xER",
		},
		{
			ROM:    rom.Descriptor{Name: "F400_ALL.BIN", Size: romSize512K, BootArea: bootArea, ChipCount: 1, ChipIndex: 0},
			Boards: "Net186, 186ED",
		},
	}
}
