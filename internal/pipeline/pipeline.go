// Package pipeline orchestrates the conversion workflow stages.
package pipeline

import (
	"context"
	"fmt"

	"github.com/retroenv/mzrom/internal/detector"
	"github.com/retroenv/mzrom/internal/loader"
	"github.com/retroenv/mzrom/internal/mz"
	"github.com/retroenv/mzrom/internal/window"
	"github.com/retroenv/retrogolib/log"
)

// payloadChunk is the number of program bytes read from the window at once.
const payloadChunk = 0x4000

// Pipeline orchestrates the complete conversion workflow.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
}

// New creates a new conversion pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
	}
}

// open detects and loads the source file for the file name stem.
func (p *Pipeline) open(stem string, kinds []detector.Kind, policy mz.Policy, windowSize int) (*loader.Image, error) {
	path, kind, err := p.detector.Detect(stem, kinds...)
	if err != nil {
		return nil, fmt.Errorf("detecting source file: %w", err)
	}

	im, err := loader.New(policy, windowSize).Load(path, kind)
	if err != nil {
		return nil, err
	}

	d := im.Descriptor
	p.logger.Info("Processing program",
		log.String("file", path),
		log.Stringer("kind", kind),
		log.Int("length", int(d.PayloadLength())),
		log.Uint16("relocations", d.RelocationCount),
	)
	p.logger.Debug("Program header",
		log.Uint16("header_paragraphs", d.HeaderParagraphs),
		log.Hex("entry_segment", d.EntrySegment),
		log.Hex("entry_offset", d.EntryOffset),
		log.Hex("stack_segment", d.StackSegment),
		log.Hex("stack_offset", d.StackOffset),
		log.Uint16("extra_paragraphs", d.MinExtraParagraphs),
	)
	return im, nil
}

// ReadPayload returns the complete program of the image.
func ReadPayload(ctx context.Context, im *loader.Image) ([]byte, error) {
	d := im.Descriptor
	payload := make([]byte, 0, d.PayloadLength())
	err := forEachChunk(ctx, im.Reader, d.PayloadOffset(), d.PayloadLength(), func(data []byte) error {
		payload = append(payload, data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// forEachChunk reads length bytes at offset through the window and passes them
// to fn in chunks.
func forEachChunk(ctx context.Context, r *window.Reader, offset, length uint32, fn func(data []byte) error) error {
	for length > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reading program data: %w", err)
		}

		n := min(length, payloadChunk)
		data, err := r.Read(offset, int(n))
		if err != nil {
			return fmt.Errorf("reading program data: %w", err)
		}
		if err := fn(data); err != nil {
			return err
		}

		offset += n
		length -= n
	}
	return nil
}
