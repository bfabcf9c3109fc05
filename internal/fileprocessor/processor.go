// Package fileprocessor handles file creation and processing operations
package fileprocessor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/options"
	"github.com/retroenv/mzrom/internal/pipeline"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// ProcessHex converts the program to a hex file. On failure a partially written
// output file is left on disk.
func ProcessHex(ctx context.Context, logger *log.Logger, opts options.Program, hexOpts options.Hex) error {
	if opts.Output == "" {
		opts.Output = GenerateOutputFilename(opts.Input)
	}

	newWriter := func() (io.WriteCloser, error) {
		file, err := os.Create(opts.Output)
		if err != nil {
			return nil, fault.Wrap(fault.WriteError, err, fmt.Sprintf("can not create destination file %s", opts.Output))
		}
		return file, nil
	}

	p := pipeline.New(logger)
	result, err := p.Hex(ctx, opts, hexOpts, newWriter)
	if err != nil {
		return err
	}

	logger.Info("File written successfully",
		log.String("file", opts.Output),
		log.Int("records", result.Records),
		log.Int("relocations", result.Relocations))
	return nil
}

// ProcessROM writes the ROM images of all supported boards.
func ProcessROM(ctx context.Context, logger *log.Logger, opts options.Program) error {
	if opts.Output != "" {
		if err := os.MkdirAll(opts.Output, 0o755); err != nil {
			return fault.Wrap(fault.WriteError, err, fmt.Sprintf("creating directory %s", opts.Output))
		}
	}

	p := pipeline.New(logger)
	result, err := p.ROM(ctx, opts)
	if err != nil {
		return err
	}

	logger.Info("ROM images written successfully",
		log.Int("images", len(result.Images)),
		log.Int("length", int(result.PayloadLength)))
	return nil
}

// GenerateOutputFilename generates the hex output filename for a file name stem.
func GenerateOutputFilename(stem string) string {
	return stem + ".hex"
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, name, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info(name, log.String("version", buildinfo.Version(version, commit, date)))
}
