// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"errors"
	"fmt"
)

// Kind classifies the condition behind an *Error. The set mirrors the
// taxonomy exiv2's Exiv2::ErrorCode enumerates (error.hpp), grouped the
// same way: input validation, I/O, parse/corruption, semantics, resource.
type Kind int

const (
	KindUnknown Kind = iota

	// Input validation.
	KindNotAnImage
	KindUnsupportedImageType
	KindInvalidKey
	KindInvalidTag
	KindInvalidIconvEncoding

	// I/O.
	KindSourceOpenFailed
	KindFileOpenFailed
	KindReadFailed
	KindWriteFailed
	KindMapFailed
	KindRenameFailed
	KindTransferFailed

	// Parse / corruption.
	KindCorruptedMetadata
	KindInvalidIfdID
	KindValueTooLarge
	KindOffsetOutOfRange
	KindTooManyIfdEntries
	KindTiffDirectoryTooLarge
	KindInvalidTypeValue
	KindInvalidICCProfile
	KindInvalidXMP
	KindTooLargeJpegSegment

	// Semantics.
	KindValueNotSet
	KindInvalidSettingForImage
	KindFormatUnsupportedForWrite
	KindFunctionNotSupported

	// Resource.
	KindMallocFailed
	KindArithmeticOverflow
	KindInvalidMalloc
)

var kindNames = map[Kind]string{
	KindUnknown:                   "unknown",
	KindNotAnImage:                "not an image",
	KindUnsupportedImageType:      "unsupported image type",
	KindInvalidKey:                "invalid key",
	KindInvalidTag:                "invalid tag",
	KindInvalidIconvEncoding:      "invalid iconv encoding",
	KindSourceOpenFailed:          "source open failed",
	KindFileOpenFailed:            "file open failed",
	KindReadFailed:                "read failed",
	KindWriteFailed:               "write failed",
	KindMapFailed:                 "map failed",
	KindRenameFailed:              "rename failed",
	KindTransferFailed:            "transfer failed",
	KindCorruptedMetadata:         "corrupted metadata",
	KindInvalidIfdID:              "invalid ifd id",
	KindValueTooLarge:             "value too large",
	KindOffsetOutOfRange:          "offset out of range",
	KindTooManyIfdEntries:         "too many ifd entries",
	KindTiffDirectoryTooLarge:     "tiff directory too large",
	KindInvalidTypeValue:          "invalid type value",
	KindInvalidICCProfile:         "invalid icc profile",
	KindInvalidXMP:                "invalid xmp",
	KindTooLargeJpegSegment:       "too large jpeg segment",
	KindValueNotSet:               "value not set",
	KindInvalidSettingForImage:    "invalid setting for image",
	KindFormatUnsupportedForWrite: "format unsupported for write",
	KindFunctionNotSupported:      "function not supported",
	KindMallocFailed:              "malloc failed",
	KindArithmeticOverflow:        "arithmetic overflow",
	KindInvalidMalloc:             "invalid malloc",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is the module's structured error, wrapping a Kind with up to
// three positional arguments plus an optional underlying cause.
type Error struct {
	Kind Kind
	Args [3]any
	nArg int
	Err  error
}

func newError(k Kind, args ...any) *Error {
	e := &Error{Kind: k}
	n := copy(e.Args[:], args)
	e.nArg = n
	return e
}

func newErrorWrap(k Kind, err error) *Error {
	return &Error{Kind: k, Err: err}
}

func (e *Error) Error() string {
	if e.nArg == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
	msg := e.Kind.String()
	for _, a := range e.Args[:e.nArg] {
		msg += fmt.Sprintf(" %v", a)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, someKindSentinel) work by comparing Kind when the
// target is also an *Error carrying the zero value of everything but Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// IsKind reports whether err is, or wraps, an *Error with the given Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// sentinel, kept for errors.Is(err, ErrCorruptedMetadata) style checks.
var (
	ErrCorruptedMetadata   = &Error{Kind: KindCorruptedMetadata}
	ErrValueNotSet         = &Error{Kind: KindValueNotSet}
	ErrFunctionNotSupported = &Error{Kind: KindFunctionNotSupported}
)
