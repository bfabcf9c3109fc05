package verification

import (
	"fmt"
	"os"
	"sort"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/rom"
	"github.com/retroenv/retrogolib/log"
)

// ROMFile is a written ROM image and its optional Intel HEX copy.
type ROMFile struct {
	ROM      rom.Descriptor
	Path     string
	IntelHex string
}

type romSet struct {
	size      uint32
	bootArea  uint32
	chipCount uint32
}

// VerifyROM reads back the ROM images, groups them into interleaved sets and checks
// that every set recreates the payload and the reset vector.
func VerifyROM(logger *log.Logger, files []ROMFile, payload []byte) error {
	sets := map[romSet][]ROMFile{}
	var order []romSet
	for _, file := range files {
		key := romSet{size: file.ROM.Size, bootArea: file.ROM.BootArea, chipCount: file.ROM.ChipCount}
		if _, ok := sets[key]; !ok {
			order = append(order, key)
		}
		sets[key] = append(sets[key], file)
	}

	for _, key := range order {
		if err := verifySet(logger, sets[key], payload); err != nil {
			return err
		}
	}
	return nil
}

func verifySet(logger *log.Logger, files []ROMFile, payload []byte) error {
	sort.Slice(files, func(i, j int) bool {
		return files[i].ROM.ChipIndex < files[j].ROM.ChipIndex
	})

	d := files[0].ROM
	if uint32(len(files)) != d.ChipCount {
		return fault.Newf(fault.VerificationFailed, "incomplete chip set for %s", d.Name).
			WithSizes(uint64(d.ChipCount), uint64(len(files)))
	}

	images := make([][]byte, 0, len(files))
	for i, file := range files {
		if file.ROM.ChipIndex != uint32(i) {
			return fault.Newf(fault.VerificationFailed, "duplicate chip index %d for %s", file.ROM.ChipIndex, file.ROM.Name)
		}
		image, err := readImage(file)
		if err != nil {
			return err
		}
		images = append(images, image)
	}

	rebuilt, err := rom.Deinterleave(images, d.LeadingFill(), uint32(len(payload)))
	if err != nil {
		return fmt.Errorf("deinterleaving %s: %w", d.Name, err)
	}
	if err := checkBufferEqual(logger, payload, rebuilt); err != nil {
		return fmt.Errorf("program data mismatch in %s: %w", d.Name, err)
	}

	vectorOffset := d.Size - rom.VectorSize/d.ChipCount
	vector, err := rom.Deinterleave(images, vectorOffset, rom.VectorSize)
	if err != nil {
		return fmt.Errorf("deinterleaving reset vector of %s: %w", d.Name, err)
	}
	expected := d.ResetVector()
	if err := checkBufferEqual(logger, expected[:], vector); err != nil {
		return fmt.Errorf("reset vector mismatch in %s: %w", d.Name, err)
	}

	logger.Debug("ROM image set verified",
		log.String("file", d.Name),
		log.Int("chips", len(images)))
	return nil
}

func readImage(file ROMFile) ([]byte, error) {
	image, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fault.Wrap(fault.ReadError, err, fmt.Sprintf("reading file %s", file.Path))
	}
	if uint32(len(image)) != file.ROM.Size {
		return nil, fault.Newf(fault.VerificationFailed, "image %s has wrong size", file.Path).
			WithSizes(uint64(file.ROM.Size), uint64(len(image)))
	}

	if file.IntelHex == "" {
		return image, nil
	}

	f, err := os.Open(file.IntelHex)
	if err != nil {
		return nil, fault.Wrap(fault.ReadError, err, fmt.Sprintf("opening file %s", file.IntelHex))
	}
	defer func() { _ = f.Close() }()

	parsed, err := rom.ReadIntelHex(f, 0, file.ROM.Size)
	if err != nil {
		return nil, fault.Wrap(fault.VerificationFailed, err, fmt.Sprintf("reading %s", file.IntelHex))
	}
	if err := equalImages(image, parsed); err != nil {
		return nil, fmt.Errorf("intel HEX copy %s: %w", file.IntelHex, err)
	}
	return image, nil
}
