// Package options contains the program options.
package options

// Parameters contains file path options.
type Parameters struct {
	Input  string // file name stem, the extension is chosen by source detection
	Output string // output file for the hex converter, output directory for the ROM builder
}

// Flags contains behavior options.
type Flags struct {
	IntelHex bool // also write ROM images as Intel HEX
	Verify   bool // read back the written files and compare them with the program
	Debug    bool
	Quiet    bool
}

// Program options of the converters.
type Program struct {
	Parameters
	Flags
}

// Hex defines options that control the hex encoding.
type Hex struct {
	Fixed     bool   // program is located at a fixed segment instead of being relocated by the loader
	Segment   uint16 // load segment in fixed mode
	LineWidth int    // data bytes per record, 0 selects the default
}
