// Package verification verifies that the generated output files recreate the program.
package verification

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/mzrom/internal/fault"
	"github.com/retroenv/mzrom/internal/hexrecord"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

const maxLoggedMismatches = 10

// VerifyHex decodes the hex records and checks that the data records load the
// payload at the origin segment. Data records must not overlap, the identification
// record of relocatable files is skipped.
func VerifyHex(logger *log.Logger, r io.Reader, payload []byte, origin uint16) error {
	dec := hexrecord.NewDecoder(r)
	base := uint32(origin) << 4
	image := make([]byte, len(payload))
	written := set.New[uint32]()

	var segment uint16
	var eof bool
	for {
		record, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("decoding hex records: %w", err)
		}
		if eof {
			return fault.Newf(fault.VerificationFailed, "line %d: record after end of file", dec.Line())
		}

		switch record.Type {
		case hexrecord.Data:
			start := uint32(segment)<<4 + uint32(record.Address)
			for i, b := range record.Data {
				address := start + uint32(i)
				if written.Contains(address) {
					return fault.Newf(fault.VerificationFailed, "line %d: overlapping data", dec.Line()).AtOffset(address)
				}
				written.Add(address)
				if address >= base && address-base < uint32(len(image)) {
					image[address-base] = b
				}
			}

		case hexrecord.SegmentBase:
			if isIdentification(record) {
				continue
			}
			if len(record.Data) != 2 {
				return fault.Newf(fault.InvalidFormat, "line %d: invalid segment record", dec.Line())
			}
			segment = binary.BigEndian.Uint16(record.Data)

		case hexrecord.StartAddress:
			if len(record.Data) != 4 {
				return fault.Newf(fault.InvalidFormat, "line %d: invalid start address record", dec.Line())
			}

		case hexrecord.EndOfFile:
			eof = true

		default:
			return fault.Newf(fault.InvalidFormat, "line %d: unsupported record type %s", dec.Line(), record.Type)
		}
	}

	if !eof {
		return fault.New(fault.VerificationFailed, "missing end of file record")
	}

	var missing int
	for i := range payload {
		if !written.Contains(base + uint32(i)) {
			missing++
		}
	}
	if missing > 0 {
		return fault.Newf(fault.VerificationFailed, "%d program bytes are not covered by data records", missing)
	}

	if err := checkBufferEqual(logger, payload, image); err != nil {
		return fmt.Errorf("program data mismatch: %w", err)
	}
	return nil
}

func isIdentification(record hexrecord.Record) bool {
	return len(record.Data) == hexrecord.IdentificationLength &&
		string(record.Data[2:2+len(hexrecord.IdentificationTag)]) == hexrecord.IdentificationTag
}

func checkBufferEqual(logger *log.Logger, input, output []byte) error {
	if len(input) != len(output) {
		return fault.New(fault.VerificationFailed, "mismatched lengths").
			WithSizes(uint64(len(input)), uint64(len(output)))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < maxLoggedMismatches {
			logger.Warn("Offset mismatch",
				log.Hex("offset", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fault.Newf(fault.VerificationFailed, "%d offset mismatches", diffs)
}

// equalImages compares two complete images and reports the first difference.
func equalImages(expected, got []byte) error {
	if bytes.Equal(expected, got) {
		return nil
	}
	if len(expected) != len(got) {
		return fault.New(fault.VerificationFailed, "mismatched lengths").
			WithSizes(uint64(len(expected)), uint64(len(got)))
	}
	for i := range expected {
		if expected[i] != got[i] {
			return fault.New(fault.VerificationFailed, "image mismatch").AtOffset(uint32(i)).
				WithSizes(uint64(expected[i]), uint64(got[i]))
		}
	}
	return nil
}
