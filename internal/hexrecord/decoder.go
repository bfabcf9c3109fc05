package hexrecord

import (
	"bufio"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/retroenv/mzrom/internal/fault"
)

// Decoder reads hex records from a text stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{scanner: bufio.NewScanner(r)}
}

// Line returns the line number of the last decoded record.
func (d *Decoder) Line() int {
	return d.line
}

// Next returns the next record. It returns io.EOF at the end of the stream and an
// InvalidFormat error for malformed lines or checksum mismatches.
func (d *Decoder) Next() (Record, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}
		return d.parse(text)
	}
	if err := d.scanner.Err(); err != nil {
		return Record{}, fault.Wrap(fault.ReadError, err, "reading hex records")
	}
	return Record{}, io.EOF
}

// ReadAll decodes all records of the stream.
func (d *Decoder) ReadAll() ([]Record, error) {
	var records []Record
	for {
		r, err := d.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
}

func (d *Decoder) parse(text string) (Record, error) {
	if text[0] != ':' {
		return Record{}, fault.Newf(fault.InvalidFormat, "line %d: missing record mark", d.line)
	}

	raw, err := hex.DecodeString(text[1:])
	if err != nil {
		return Record{}, fault.Wrap(fault.InvalidFormat, err, "decoding hex digits")
	}
	if len(raw) < 5 {
		return Record{}, fault.Newf(fault.InvalidFormat, "line %d: record too short", d.line)
	}
	if int(raw[0]) != len(raw)-5 {
		return Record{}, fault.Newf(fault.InvalidFormat, "line %d: record length mismatch", d.line).
			WithSizes(uint64(raw[0]), uint64(len(raw)-5))
	}
	if Checksum(raw) != 0 {
		return Record{}, fault.Newf(fault.InvalidFormat, "line %d: checksum mismatch", d.line).
			WithSizes(uint64(Checksum(raw[:len(raw)-1])), uint64(raw[len(raw)-1]))
	}

	return Record{
		Type:    Type(raw[3]),
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:    raw[4 : len(raw)-1],
	}, nil
}
