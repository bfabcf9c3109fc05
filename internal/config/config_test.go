package config

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestBoards(t *testing.T) {
	boards := Boards()
	assert.Len(t, boards, 5)

	names := map[string]bool{}
	for _, board := range boards {
		assert.NoError(t, board.ROM.Validate())
		assert.False(t, names[board.ROM.Name], "duplicate image name")
		names[board.ROM.Name] = true
		assert.Equal(t, uint16(0xF800), board.ROM.ResetSegment())
	}

	low, high := boards[1].ROM, boards[2].ROM
	assert.Equal(t, uint32(2), low.ChipCount)
	assert.Equal(t, uint32(0), low.ChipIndex)
	assert.Equal(t, uint32(1), high.ChipIndex)
}

func TestCreateLogger(t *testing.T) {
	assert.NotNil(t, CreateLogger(false, false))
	assert.NotNil(t, CreateLogger(true, false))
	assert.NotNil(t, CreateLogger(false, true))
}
