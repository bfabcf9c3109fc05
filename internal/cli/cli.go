// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/retroenv/mzrom/internal/config"
	"github.com/retroenv/mzrom/internal/hexrecord"
	"github.com/retroenv/mzrom/internal/options"
)

// ParseHexFlags parses the command line of the hex converter:
// makehex [options] <file> [segment address]
func ParseHexFlags() (options.Program, options.Hex, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readCommonFlags(flags, &opts)
	flags.StringVar(&opts.Output, "o", "", "name of the output .hex file (default: <file>.hex)")
	var hexOpts options.Hex
	flags.IntVar(&hexOpts.LineWidth, "w", hexrecord.DefaultLineWidth, "number of data bytes per hex record (32, 64 or 128)")

	usage := &UsageError{flags: flags, syntax: "makehex [options] <file> [segment address]", help: hexHelp}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return opts, options.Hex{}, usageFrom(usage, err)
	}

	args := flags.Args()
	if len(args) < 1 || len(args) > 2 {
		return opts, options.Hex{}, usage
	}
	if err := validateArgs(args); err != nil {
		usage.msg = err.Error()
		return opts, options.Hex{}, usage
	}
	if !validLineWidth(hexOpts.LineWidth) {
		usage.msg = fmt.Sprintf("invalid line width %d", hexOpts.LineWidth)
		return opts, options.Hex{}, usage
	}
	opts.Input = normalizeStem(args[0])

	if len(args) == 2 {
		segment, err := parseSegment(args[1])
		if err != nil {
			usage.msg = err.Error()
			return opts, options.Hex{}, usage
		}
		hexOpts.Fixed = true
		hexOpts.Segment = segment
	}

	return opts, hexOpts, nil
}

// ParseROMFlags parses the command line of the ROM image builder:
// makebin [options] <file>
func ParseROMFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readCommonFlags(flags, &opts)
	flags.StringVar(&opts.Output, "d", "", "directory to write the ROM images to (default: current directory)")
	flags.BoolVar(&opts.IntelHex, "ihex", false, "also write every ROM image as Intel HEX file")

	usage := &UsageError{flags: flags, syntax: "makebin [options] <file>", help: romHelp()}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return opts, usageFrom(usage, err)
	}

	args := flags.Args()
	if len(args) != 1 {
		return opts, usage
	}
	if err := validateArgs(args); err != nil {
		usage.msg = err.Error()
		return opts, usage
	}
	opts.Input = normalizeStem(args[0])

	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags  *flag.FlagSet
	syntax string
	help   string
	msg    string
}

func (e *UsageError) Error() string {
	if e.msg == "" {
		return "invalid arguments"
	}
	return e.msg
}

// ShowUsage prints the command syntax, the flag defaults and the help text.
func (e *UsageError) ShowUsage() {
	if e.msg != "" {
		fmt.Printf("%s\n\n", e.msg)
	}
	fmt.Printf("usage: %s\n\n", e.syntax)
	e.flags.SetOutput(os.Stdout)
	e.flags.PrintDefaults()
	fmt.Printf("\n%s\n", e.help)
}

func usageFrom(usage *UsageError, err error) error {
	if !errors.Is(err, flag.ErrHelp) {
		usage.msg = err.Error()
	}
	return usage
}

func readCommonFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.SetOutput(new(strings.Builder)) // usage is printed by UsageError.ShowUsage
	flags.BoolVar(&opts.Verify, "verify", false, "read back the written files and compare them with the program")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && strings.HasPrefix(arg, "-") {
			return fmt.Errorf("potential argument %s found after file name, please pass options before the file name", arg)
		}
	}
	return nil
}

// normalizeStem strips a source extension that was passed along with the file name,
// the converters append the extension themselves.
func normalizeStem(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".exe", ".com", ".bin":
		return strings.TrimSuffix(name, filepath.Ext(name))
	default:
		return name
	}
}

// validLineWidth reports whether the width is a power of two that can carry the
// identification record of relocatable files.
func validLineWidth(width int) bool {
	switch width {
	case 32, 64, 128:
		return true
	default:
		return false
	}
}

// parseSegment parses a hexadecimal segment address. Only hex digits are accepted.
func parseSegment(s string) (uint16, error) {
	value, err := strconv.ParseUint(s, 16, 32)
	if err != nil || value > 0xFFFF {
		return 0, fmt.Errorf("invalid segment address '%s', expected a hexadecimal value below 10000", s)
	}
	return uint16(value), nil
}

const hexHelp = `makehex takes <file>.bin, <file>.com or <file>.exe and generates <file>.hex.

The <segment address> parameter should only be given if the .exe file
contains no relocation information other than references to its data
segment. In this case makehex outputs the program at the given segment
address. This is used to build the monitor itself.

If no <segment address> parameter is given, makehex generates a hex file
with relocation records which the monitor loads into RAM and relocates.`

func romHelp() string {
	var sb strings.Builder
	sb.WriteString("makebin takes <file>.exe and generates the following ROM images:\n\n")
	for _, board := range config.Boards() {
		fmt.Fprintf(&sb, "    %-14s -- used in %s boards\n", board.ROM.Name, board.Boards)
	}
	return sb.String()
}
