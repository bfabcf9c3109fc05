package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/retroenv/mzrom/internal/detector"
	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/hexrecord"
	"github.com/retroenv/mzrom/internal/loader"
	"github.com/retroenv/mzrom/internal/mz"
	"github.com/retroenv/mzrom/internal/options"
	"github.com/retroenv/mzrom/internal/relocation"
	"github.com/retroenv/mzrom/internal/verification"
	"github.com/retroenv/mzrom/internal/window"
	"github.com/retroenv/retrogolib/log"
)

const (
	// farJumpSegment is the lowest fixed segment that gets a far jump at the
	// reset location instead of a start address record.
	farJumpSegment = 0xF800

	resetSegment = 0xFFFF
)

// librarySignature marks monitor library extensions, which have no entry point.
var librarySignature = append([]byte{0xEB, 0x16}, "E86Mon Lib Extension 1"...)

// HexResult contains the statistics of a written hex file.
type HexResult struct {
	Relocatable   bool
	Library       bool
	PayloadLength uint32
	Relocations   int
	Records       int
}

// WriterConstructor creates the destination of the hex records.
type WriterConstructor func() (io.WriteCloser, error)

// Hex converts the source file selected by the options to hex records. The
// destination is only created after the source has been loaded successfully.
func (p *Pipeline) Hex(ctx context.Context, opts options.Program, hexOpts options.Hex,
	newWriter WriterConstructor) (*HexResult, error) {

	im, err := p.open(opts.Input, detector.HexSources, mz.HexPolicy, window.HexWindowSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = im.Close() }()

	w, err := newWriter()
	if err != nil {
		return nil, err
	}

	var out io.Writer = w
	var written bytes.Buffer
	if opts.Verify {
		out = io.MultiWriter(w, &written)
	}

	result, err := p.EncodeHex(ctx, im, hexOpts, out)
	closeErr := w.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fault.Wrap(fault.WriteError, closeErr, "closing hex output")
	}

	if opts.Verify {
		if err := p.verifyHex(ctx, im, hexOpts, &written); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *Pipeline) verifyHex(ctx context.Context, im *loader.Image, hexOpts options.Hex, written io.Reader) error {
	payload, err := ReadPayload(ctx, im)
	if err != nil {
		return err
	}

	var origin uint16
	if hexOpts.Fixed {
		origin = hexOpts.Segment
	}
	if err := verification.VerifyHex(p.logger, written, payload, origin); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	p.logger.Info("Verification successful")
	return nil
}

// EncodeHex writes the loaded image as hex records to w.
// This is useful for testing and programmatic usage where the image is already loaded.
func (p *Pipeline) EncodeHex(ctx context.Context, im *loader.Image, hexOpts options.Hex, w io.Writer) (*HexResult, error) {
	var encOpts []hexrecord.Option
	if hexOpts.LineWidth != 0 {
		encOpts = append(encOpts, hexrecord.WithLineWidth(hexOpts.LineWidth))
	}
	enc := hexrecord.NewEncoder(w, encOpts...)

	entries, err := relocation.ReadTable(im.Reader, im.Descriptor)
	if err != nil {
		return nil, err
	}

	result := &HexResult{
		Relocatable:   !hexOpts.Fixed,
		PayloadLength: im.Descriptor.PayloadLength(),
		Relocations:   len(entries),
	}

	if hexOpts.Fixed {
		p.logger.Debug("Writing program at fixed segment", log.Hex("segment", hexOpts.Segment))
		err = p.encodeFixed(ctx, enc, im, entries, hexOpts.Segment, result)
	} else {
		p.logger.Debug("Writing relocatable program")
		err = p.encodeRelocatable(ctx, enc, im, entries)
	}
	if err != nil {
		return nil, err
	}

	if err := enc.EmitEndOfFile(); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}

	result.Records = enc.Records()
	return result, nil
}

// encodeRelocatable writes a program that the monitor loads anywhere in RAM
// and relocates with the appended list of relocation targets.
func (p *Pipeline) encodeRelocatable(ctx context.Context, enc *hexrecord.Encoder, im *loader.Image,
	entries []relocation.Entry) error {

	if enc.LineWidth() < hexrecord.IdentificationLength {
		return fmt.Errorf("line width %d is too small for the identification record", enc.LineWidth())
	}

	d := im.Descriptor
	lineWidth := uint32(enc.LineWidth())
	programLength := alignUp(d.PayloadLength(), lineWidth)
	relocationLength := alignUp(uint32(len(entries))*4, lineWidth)

	if err := enc.EmitStartAddress(d.EntrySegment, d.EntryOffset); err != nil {
		return err
	}
	err := enc.EmitIdentification(hexrecord.Identification{
		Paragraphs:    uint16(programLength>>4) + 2 + d.MinExtraParagraphs,
		StackSegment:  d.StackSegment,
		StackOffset:   d.StackOffset,
		ProgramLength: programLength,
		RelocationEnd: programLength + relocationLength,
	})
	if err != nil {
		return err
	}

	if err := writePayload(ctx, enc, im); err != nil {
		return err
	}
	if err := enc.Align(); err != nil {
		return err
	}

	endOfProgram := enc.Cursor().Linear()
	p.logger.Debug("Writing relocation list",
		log.Int("entries", len(entries)),
		log.Hex("end_of_program", endOfProgram))
	return relocation.NewFlat(entries, endOfProgram).Encode(enc)
}

// encodeFixed writes a program located at the given segment. Only relocations
// of the data segment selector are supported.
func (p *Pipeline) encodeFixed(ctx context.Context, enc *hexrecord.Encoder, im *loader.Image,
	entries []relocation.Entry, segment uint16, result *HexResult) error {

	d := im.Descriptor
	if err := enc.SetSegment(segment); err != nil {
		return err
	}

	library, err := isLibrary(im)
	if err != nil {
		return err
	}
	result.Library = library

	if err := writePayload(ctx, enc, im); err != nil {
		return err
	}

	if len(entries) > 0 {
		resident, err := im.Reader.LoadAll()
		if err != nil {
			return err
		}
		var payload []byte
		if resident {
			payload = im.Reader.Bytes()[d.PayloadOffset():d.TotalLength]
		}

		p.logger.Debug("Writing data segment relocations",
			log.Int("entries", len(entries)),
			log.Hex("position", enc.Position()))
		if err := relocation.NewDGROUP(entries, payload, resident).Encode(enc); err != nil {
			return err
		}
	}

	entrySegment := d.EntrySegment + segment
	switch {
	case segment >= farJumpSegment:
		p.logger.Debug("Writing reset jump",
			log.Hex("segment", entrySegment),
			log.Hex("offset", d.EntryOffset))
		return enc.EmitFarJump(resetSegment, 0, entrySegment, d.EntryOffset)
	case library:
		p.logger.Debug("Library extension found, omitting start address")
		return nil
	default:
		return enc.EmitStartAddress(entrySegment, d.EntryOffset)
	}
}

func isLibrary(im *loader.Image) (bool, error) {
	d := im.Descriptor
	if d.PayloadLength() < uint32(len(librarySignature)) {
		return false, nil
	}
	data, err := im.Reader.Read(d.PayloadOffset(), len(librarySignature))
	if err != nil {
		return false, fmt.Errorf("reading library signature: %w", err)
	}
	return bytes.Equal(data, librarySignature), nil
}

func writePayload(ctx context.Context, enc *hexrecord.Encoder, im *loader.Image) error {
	d := im.Descriptor
	return forEachChunk(ctx, im.Reader, d.PayloadOffset(), d.PayloadLength(), enc.EmitData)
}

func alignUp(value, alignment uint32) uint32 {
	return (value + alignment - 1) &^ (alignment - 1)
}
