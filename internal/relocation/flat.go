package relocation

import "github.com/retroenv/mzrom/internal/hexrecord"

// Flat writes the linear target of every entry for loaders that relocate the
// program at load time. The last line is padded with the end of program offset,
// which marks the end of the list.
type Flat struct {
	entries      []Entry
	endOfProgram uint32
}

// NewFlat returns the flat strategy.
func NewFlat(entries []Entry, endOfProgram uint32) *Flat {
	return &Flat{
		entries:      entries,
		endOfProgram: endOfProgram,
	}
}

// Encode writes the relocation list.
func (f *Flat) Encode(enc *hexrecord.Encoder) error {
	t := newTrailer(enc)
	for _, entry := range f.entries {
		if err := t.put(entry.Linear()); err != nil {
			return err
		}
	}
	return t.close(f.endOfProgram)
}
