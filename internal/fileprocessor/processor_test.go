package fileprocessor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/mzrom/internal/config"
	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/hexrecord"
	"github.com/retroenv/mzrom/internal/mz/mztest"
	"github.com/retroenv/mzrom/internal/options"
	"github.com/retroenv/mzrom/internal/relocation"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestGenerateOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "monitor.hex"), GenerateOutputFilename(filepath.Join("dir", "monitor")))
}

func TestProcessHex(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "monitor")
	exe := mztest.Image{Payload: []byte{0xB8, 0x00, 0x00, 0xCB}}.Build()
	assert.NoError(t, os.WriteFile(stem+".exe", exe, 0o600))

	opts := options.Program{
		Parameters: options.Parameters{Input: stem},
		Flags:      options.Flags{Verify: true},
	}
	err := ProcessHex(context.Background(), log.NewTestLogger(t), opts, options.Hex{Fixed: true, Segment: 0xF000})
	assert.NoError(t, err)

	file, err := os.Open(stem + ".hex")
	assert.NoError(t, err)
	defer func() { _ = file.Close() }()

	records, err := hexrecord.NewDecoder(file).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, hexrecord.EndOfFile, records[len(records)-1].Type)
}

func TestProcessHexKeepsPartialOutput(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "monitor")
	exe := mztest.Image{
		Payload:     make([]byte, 0x20),
		Relocations: []uint32{uint32(relocation.Pack(1, 0))},
	}.Build()
	assert.NoError(t, os.WriteFile(stem+".exe", exe, 0o600))

	opts := options.Program{Parameters: options.Parameters{Input: stem}}
	err := ProcessHex(context.Background(), log.NewTestLogger(t), opts, options.Hex{Fixed: true, Segment: 0x1000})
	assert.True(t, fault.Is(err, fault.NoDataSegment))

	_, err = os.Stat(stem + ".hex")
	assert.NoError(t, err)
}

func TestProcessHexMissingSource(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "missing")

	opts := options.Program{Parameters: options.Parameters{Input: stem}}
	err := ProcessHex(context.Background(), log.NewTestLogger(t), opts, options.Hex{})
	assert.True(t, fault.Is(err, fault.ReadError))

	_, err = os.Stat(stem + ".hex")
	assert.True(t, os.IsNotExist(err))
}

func TestProcessROM(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "e86mon")
	exe := mztest.Image{Payload: []byte{0xEA, 0x00, 0x00, 0x00, 0xF8}}.Build()
	assert.NoError(t, os.WriteFile(stem+".exe", exe, 0o600))

	out := filepath.Join(dir, "roms")
	opts := options.Program{
		Parameters: options.Parameters{Input: stem, Output: out},
		Flags:      options.Flags{Verify: true, IntelHex: true},
	}
	assert.NoError(t, ProcessROM(context.Background(), log.NewTestLogger(t), opts))

	for _, board := range config.Boards() {
		info, err := os.Stat(filepath.Join(out, board.ROM.Name))
		assert.NoError(t, err)
		assert.Equal(t, int64(board.ROM.Size), info.Size())
	}
}

func TestProcessROMRejectsRelocations(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "e86mon")
	exe := mztest.Image{Payload: make([]byte, 8), Relocations: []uint32{0, 4}}.Build()
	assert.NoError(t, os.WriteFile(stem+".exe", exe, 0o600))

	opts := options.Program{Parameters: options.Parameters{Input: stem, Output: dir}}
	err := ProcessROM(context.Background(), log.NewTestLogger(t), opts)
	assert.True(t, fault.Is(err, fault.UnsupportedRelocationCount))
}
