// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// FuzzEncodeJPEGMetadata fuzzes the JPEG splice path (jpeg.go) instead of
// the teacher's read-only Decode: src is whatever garbage the fuzzer
// produces, metadata is fixed, and the only thing under test is that
// EncodeJPEGMetadata never panics and, when it succeeds, returns bytes
// that still begin with the JPEG SOI marker.
func FuzzEncodeJPEGMetadata(f *testing.F) {
	f.Add(minimalJPEG())
	f.Add([]byte{0xff, 0xd8, 0xff, 0xd9})
	f.Add([]byte{})
	f.Add([]byte{0xff})

	exif := newMetadataContainer(EXIF)
	exif.Add(Datum{Family: EXIF, Group: "Image", Tag: "Artist", TagNumber: uint32(0x013b), Value: NewValue("fuzzer")})
	iptc := newMetadataContainer(IPTC)
	iptc.Add(Datum{Family: IPTC, Group: "IPTCApplication", Tag: "Headline", Value: NewValue("fuzz headline")})

	f.Fuzz(func(t *testing.T, src []byte) {
		out, err := EncodeJPEGMetadata(src, exif, iptc, nil, binary.BigEndian, false)
		if err != nil {
			return
		}
		if len(out) < 2 || out[0] != 0xff || out[1] != 0xd8 {
			t.Fatalf("EncodeJPEGMetadata returned output not starting with SOI: %x", out[:min(len(out), 8)])
		}
	})
}

// FuzzEncodeIptcFromContainer fuzzes the value bytes written into a
// single repeatable IIM4 dataset, checking that the canonical encoder
// (iptc.go) never panics regardless of length, including past the
// 32767-byte short-form boundary where writeIptcLength switches to the
// extended length form.
func FuzzEncodeIptcFromContainer(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte{})
	f.Add(bytes.Repeat([]byte{'x'}, 70000))

	f.Fuzz(func(t *testing.T, value []byte) {
		c := newMetadataContainer(IPTC)
		c.Add(Datum{Family: IPTC, Group: "IPTCApplication", Tag: "Keywords", Value: NewValue([]string{string(value)})})
		if _, err := EncodeIptcFromContainer(c); err != nil {
			t.Fatalf("EncodeIptcFromContainer returned unexpected error: %v", err)
		}
	})
}
