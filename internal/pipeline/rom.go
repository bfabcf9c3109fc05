package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/mzrom/internal/config"
	"github.com/retroenv/mzrom/internal/detector"
	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/loader"
	"github.com/retroenv/mzrom/internal/mz"
	"github.com/retroenv/mzrom/internal/options"
	"github.com/retroenv/mzrom/internal/rom"
	"github.com/retroenv/mzrom/internal/verification"
	"github.com/retroenv/mzrom/internal/window"
	"github.com/retroenv/retrogolib/log"
)

// ROMImage describes a written ROM image file.
type ROMImage struct {
	Board    config.Board
	Path     string
	IntelHex string // path of the Intel HEX copy, empty if none was written
	Result   rom.Result
}

// ROMResult contains the written ROM images in board table order.
type ROMResult struct {
	PayloadLength uint32
	Images        []ROMImage
}

// ROM writes the ROM images of all boards for the executable selected by the options.
func (p *Pipeline) ROM(ctx context.Context, opts options.Program) (*ROMResult, error) {
	im, err := p.open(opts.Input, detector.ROMSources, mz.MonitorPolicy, window.ROMWindowSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = im.Close() }()

	dir := opts.Output
	if dir == "" {
		dir = "."
	}
	result, err := p.WriteROMs(ctx, im, config.Boards(), dir, opts.IntelHex)
	if err != nil {
		return nil, err
	}

	if opts.Verify {
		if err := p.verifyROM(ctx, im, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *Pipeline) verifyROM(ctx context.Context, im *loader.Image, result *ROMResult) error {
	payload, err := ReadPayload(ctx, im)
	if err != nil {
		return err
	}

	files := make([]verification.ROMFile, 0, len(result.Images))
	for _, image := range result.Images {
		files = append(files, verification.ROMFile{
			ROM:      image.Board.ROM,
			Path:     image.Path,
			IntelHex: image.IntelHex,
		})
	}
	if err := verification.VerifyROM(p.logger, files, payload); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	p.logger.Info("Verification successful")
	return nil
}

// WriteROMs writes one image per board into dir. The context is checked
// before every image.
func (p *Pipeline) WriteROMs(ctx context.Context, im *loader.Image, boards []config.Board,
	dir string, intelHex bool) (*ROMResult, error) {

	result := &ROMResult{
		PayloadLength: im.Descriptor.PayloadLength(),
		Images:        make([]ROMImage, 0, len(boards)),
	}

	for _, board := range boards {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("writing ROM images: %w", err)
		}

		image, err := p.writeROM(im, board, dir)
		if err != nil {
			return nil, err
		}
		if intelHex {
			image.IntelHex, err = p.writeIntelHex(image.Path)
			if err != nil {
				return nil, err
			}
		}
		result.Images = append(result.Images, image)
	}
	return result, nil
}

func (p *Pipeline) writeROM(im *loader.Image, board config.Board, dir string) (ROMImage, error) {
	path := filepath.Join(dir, board.ROM.Name)
	file, err := os.Create(path)
	if err != nil {
		return ROMImage{}, fault.Wrap(fault.WriteError, err, fmt.Sprintf("can not create destination file %s", path))
	}

	d := im.Descriptor
	res, err := rom.Write(file, board.ROM, im.Reader, d.PayloadOffset(), d.PayloadLength())
	if err != nil {
		_ = file.Close()
		return ROMImage{}, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return ROMImage{}, fault.Wrap(fault.WriteError, err, fmt.Sprintf("closing file %s", path))
	}

	p.logger.Info("ROM image written",
		log.String("file", path),
		log.String("boards", board.Boards),
		log.Hex("checksum", res.Checksum),
	)
	return ROMImage{
		Board:  board,
		Path:   path,
		Result: res,
	}, nil
}

// writeIntelHex converts the written image to an Intel HEX file next to it.
func (p *Pipeline) writeIntelHex(imagePath string) (string, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fault.Wrap(fault.ReadError, err, fmt.Sprintf("reading file %s", imagePath))
	}

	path := IntelHexName(imagePath)
	file, err := os.Create(path)
	if err != nil {
		return "", fault.Wrap(fault.WriteError, err, fmt.Sprintf("can not create destination file %s", path))
	}
	if err := rom.WriteIntelHex(file, image, 0); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fault.Wrap(fault.WriteError, err, fmt.Sprintf("closing file %s", path))
	}

	p.logger.Debug("Intel HEX file written", log.String("file", path))
	return path, nil
}

// IntelHexName returns the name of the Intel HEX copy of a ROM image file.
func IntelHexName(imagePath string) string {
	ext := filepath.Ext(imagePath)
	if strings.EqualFold(ext, ".bin") {
		imagePath = strings.TrimSuffix(imagePath, ext)
	}
	return imagePath + ".HEX"
}
