// Package fault defines the structured error value returned by the conversion packages.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a conversion failure.
type Kind int

// Failure kinds.
const (
	Unknown Kind = iota
	InvalidFormat
	TruncatedFile
	InvalidEntryPoint
	ReadError
	WriteError
	UnsupportedRelocationCount
	AmbiguousDataSegment
	NoDataSegment
	CodeSegmentRelocation
	RelocationTargetOutOfRange
	UnalignedOutput
	ImageTooLarge
	VerificationFailed
)

var kindNames = map[Kind]string{
	Unknown:                    "unknown",
	InvalidFormat:              "invalid format",
	TruncatedFile:              "truncated file",
	InvalidEntryPoint:          "invalid entry point",
	ReadError:                  "read error",
	WriteError:                 "write error",
	UnsupportedRelocationCount: "unsupported relocation count",
	AmbiguousDataSegment:       "ambiguous data segment",
	NoDataSegment:              "no data segment",
	CodeSegmentRelocation:      "code segment relocation",
	RelocationTargetOutOfRange: "relocation target out of range",
	UnalignedOutput:            "unaligned output",
	ImageTooLarge:              "image too large",
	VerificationFailed:         "verification failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a conversion failure with the context that identifies the failed check.
type Error struct {
	Kind Kind
	Msg  string

	Offset    uint32 // offending file or payload offset
	HasOffset bool

	Expected uint64 // expected value or length
	Actual   uint64 // actual value or length
	HasSize  bool

	Err error // underlying cause, typically an I/O error
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind that wraps the cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// AtOffset attaches the offending offset.
func (e *Error) AtOffset(offset uint32) *Error {
	e.Offset = offset
	e.HasOffset = true
	return e
}

// WithSizes attaches the expected and actual values.
func (e *Error) WithSizes(expected, actual uint64) *Error {
	e.Expected = expected
	e.Actual = actual
	e.HasSize = true
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.HasOffset {
		fmt.Fprintf(&sb, " at offset 0x%X", e.Offset)
	}
	if e.HasSize {
		fmt.Fprintf(&sb, " (expected 0x%X, got 0x%X)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first fault in the error chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether the error chain contains a fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
