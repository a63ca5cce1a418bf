// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

// decodeTagsInto drives the public Decode entrypoint and collects every
// handled tag into a Tags value, the same shape callers of this package
// build from HandleTag themselves; the round-trip tests below use it to
// read back what the write path just produced.
func decodeTagsInto(c *qt.C, format ImageFormat, data []byte) Tags {
	var tags Tags
	_, err := Decode(Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		ShouldHandleTag: func(TagInfo) bool {
			return true
		},
		HandleTag: func(ti TagInfo) error {
			tags.Add(ti)
			return nil
		},
	})
	c.Assert(err, qt.IsNil)
	return tags
}

// TestJPEGExifOrientationRoundTrip covers scenario 1: an existing
// Orientation=1 tag rewritten to 6 via EncodeJPEGMetadata must read back
// as 6, with the output still starting with SOI and ending with EOI.
func TestJPEGExifOrientationRoundTrip(t *testing.T) {
	c := qt.New(t)

	exif := newMetadataContainer(EXIF)
	exif.Add(Datum{Family: EXIF, Group: "Image", Tag: "Orientation", Value: NewValue(uint16(1))})

	src, err := EncodeJPEGMetadata(minimalJPEG(), exif, nil, nil, binary.BigEndian, false)
	c.Assert(err, qt.IsNil)

	exif.Add(Datum{Family: EXIF, Group: "Image", Tag: "Orientation", Value: NewValue(uint16(6))})
	out, err := EncodeJPEGMetadata(src, exif, nil, nil, binary.BigEndian, false)
	c.Assert(err, qt.IsNil)

	c.Assert(out[len(out)-2:], qt.DeepEquals, []byte{0xff, 0xd9})
	c.Assert(out[:2], qt.DeepEquals, []byte{0xff, 0xd8})

	tags := decodeTagsInto(c, JPEG, out)
	ti, ok := tags.EXIF()["Orientation"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(ti.Value, qt.Equals, uint16(6))
}

// TestIptcAddToRepeatableKeyword covers scenario 2: a Keywords datum
// holding two values must encode to two datasets that decode back in
// insertion order, while a non-repeatable dataset (RecordVersion)
// refuses a second Add.
func TestIptcAddToRepeatableKeyword(t *testing.T) {
	c := qt.New(t)

	iptc := newMetadataContainer(IPTC)
	iptc.Add(Datum{Family: IPTC, Group: "IPTCApplication", Tag: "Keywords", Value: NewValue([]string{"cat", "dog"})})

	out, err := EncodeIptcFromContainer(iptc)
	c.Assert(err, qt.IsNil)

	var got []string
	opts := Options{
		Sources:         IPTC,
		LimitNumTags:    5000,
		LimitTagSize:    10000,
		ShouldHandleTag: func(TagInfo) bool { return true },
		HandleTag: func(ti TagInfo) error {
			if ti.Tag == "Keywords" {
				got = append(got, ti.Value.([]string)...)
			}
			return nil
		},
		Warnf: func(string, ...any) {},
	}
	dec := newMetaDecoderIPTC(bytes.NewReader(out), opts)
	c.Assert(dec.decodeRecords(), qt.IsNil)
	c.Assert(got, qt.DeepEquals, []string{"cat", "dog"})

	record, dataset, ok := lookupIptcRecordDataset("IPTCApplication", "RecordVersion")
	c.Assert(ok, qt.IsTrue)

	enc := newIptcEncoder()
	c.Assert(enc.Add(record, dataset, []byte{0, 2}), qt.IsNil)
	err = enc.Add(record, dataset, []byte{0, 3})
	c.Assert(err, qt.Not(qt.IsNil))
}

// TestIptcExtendedLengthRoundTrip covers scenario 6: a 70000-byte dataset
// value must survive encode/decode with the extended IIM4 length form,
// exercising writeIptcLength's extended branch on write and
// readIptcDataSize's on read.
func TestIptcExtendedLengthRoundTrip(t *testing.T) {
	c := qt.New(t)

	big := bytes.Repeat([]byte{'x'}, 70000)

	iptc := newMetadataContainer(IPTC)
	iptc.Add(Datum{Family: IPTC, Group: "IPTCApplication", Tag: "Caption", Value: NewValue(string(big))})

	out, err := EncodeIptcFromContainer(iptc)
	c.Assert(err, qt.IsNil)
	// High bit of the length field must be set: the short form cannot
	// encode a 70000-byte value.
	c.Assert(out[3]&0x80, qt.Equals, byte(0x80))

	var got string
	opts := Options{
		Sources:         IPTC,
		LimitNumTags:    5000,
		LimitTagSize:    1 << 20,
		ShouldHandleTag: func(TagInfo) bool { return true },
		HandleTag: func(ti TagInfo) error {
			if ti.Tag == "Caption" {
				got = ti.Value.(string)
			}
			return nil
		},
		Warnf: func(string, ...any) {},
	}
	dec := newMetaDecoderIPTC(bytes.NewReader(out), opts)
	c.Assert(dec.decodeRecords(), qt.IsNil)
	c.Assert(got, qt.Equals, string(big))
}

// TestContainerToIFDTreeSubIFDRoundTrip builds a container with both a
// root-level tag and a GPSInfoIFD child, writes it as a full TIFF stream
// and decodes it back through the public Decode API, checking that the
// sub-IFD pointer tiff.go's writeTree fills in actually resolves.
func TestContainerToIFDTreeSubIFDRoundTrip(t *testing.T) {
	c := qt.New(t)

	exif := newMetadataContainer(EXIF)
	exif.Add(Datum{Family: EXIF, Group: "Image", Tag: "Artist", Value: NewValue("a")})
	exif.Add(Datum{Family: EXIF, Group: "GPSInfoIFD", Tag: "GPSAltitudeRef", Value: NewValue(uint8(0))})

	tree := containerToIFDTree(exif, binary.BigEndian)
	c.Assert(tree.Children, qt.HasLen, 1)

	var buf bytes.Buffer
	_, err := writeTiffChain(&buf, binary.BigEndian, false, tree)
	c.Assert(err, qt.IsNil)

	var sawGPS bool
	_, err = Decode(Options{
		R:           bytes.NewReader(buf.Bytes()),
		ImageFormat: TIFF,
		Sources:     EXIF,
		ShouldHandleTag: func(TagInfo) bool {
			return true
		},
		HandleTag: func(ti TagInfo) error {
			if ti.Tag == "GPSAltitudeRef" {
				sawGPS = true
			}
			return nil
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(sawGPS, qt.IsTrue)
}

// TestIfdTreeSetKeepsAscendingTagOrder covers the spec invariant that
// entries appear in ascending tag order after a write, regardless of the
// order datums were added in.
func TestIfdTreeSetKeepsAscendingTagOrder(t *testing.T) {
	c := qt.New(t)

	tree := newIFDTree("IFD0")
	tree.set(&ifdEntry{Tag: 0x0112, Count: 1, Data: []byte{1}})
	tree.set(&ifdEntry{Tag: 0x010e, Count: 1, Data: []byte{1}})
	tree.set(&ifdEntry{Tag: 0x8298, Count: 1, Data: []byte{1}})

	var tags []uint16
	for _, e := range tree.Entries {
		tags = append(tags, e.Tag)
	}
	c.Assert(tags, qt.DeepEquals, []uint16{0x010e, 0x0112, 0x8298})
}

// TestIFDEntryCountBoundary covers the 0-entry and >500-entry boundary
// behaviors: an empty IFD writes fine, one with more than maxIFDEntries
// fails with KindTooManyIfdEntries.
func TestIFDEntryCountBoundary(t *testing.T) {
	c := qt.New(t)

	empty := newIFDTree("IFD0")
	var buf bytes.Buffer
	_, err := writeTiffChain(&buf, binary.BigEndian, false, empty)
	c.Assert(err, qt.IsNil)

	tooMany := newIFDTree("IFD0")
	for i := range maxIFDEntries + 1 {
		tooMany.Entries = append(tooMany.Entries, &ifdEntry{Tag: uint16(i), Count: 1, Data: []byte{1}})
	}
	buf.Reset()
	_, err = writeTiffChain(&buf, binary.BigEndian, false, tooMany)
	c.Assert(err, qt.Not(qt.IsNil))
	var imgErr *Error
	c.Assert(errors.As(err, &imgErr), qt.IsTrue)
	c.Assert(imgErr.Kind, qt.Equals, KindTooManyIfdEntries)
}

// TestTiffWriterRejectsCyclicOffset covers the cyclic-offset invariant:
// the visited-offset set must never let writeTree revisit the same
// origin twice within a single writeTiffChain call.
func TestTiffWriterRejectsCyclicOffset(t *testing.T) {
	c := qt.New(t)

	w := newTiffWriter(binary.BigEndian, false)
	var buf bytes.Buffer
	_, err := w.writeTree(&buf, newIFDTree("IFD0"), 8, 0)
	c.Assert(err, qt.IsNil)

	_, err = w.writeTree(&buf, newIFDTree("IFD0"), 8, 0)
	c.Assert(err, qt.Not(qt.IsNil))
	var imgErr *Error
	c.Assert(errors.As(err, &imgErr), qt.IsTrue)
	c.Assert(imgErr.Kind, qt.Equals, KindCorruptedMetadata)
}

// TestPrimitiveCodecRoundTrip covers law 3: read_T(write_T(v, B), B) == v
// for every exported primitive type, in both byte orders.
func TestPrimitiveCodecRoundTrip(t *testing.T) {
	c := qt.New(t)

	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		b2 := make([]byte, 2)
		writeUint16(b2, order, 0xbeef)
		c.Assert(readUint16(b2, order), qt.Equals, uint16(0xbeef))

		b4 := make([]byte, 4)
		writeUint32(b4, order, 0xdeadbeef)
		c.Assert(readUint32(b4, order), qt.Equals, uint32(0xdeadbeef))

		b8 := make([]byte, 8)
		writeUint64(b8, order, 0x0123456789abcdef)
		c.Assert(readUint64(b8, order), qt.Equals, uint64(0x0123456789abcdef))

		rat := make([]byte, 8)
		writeRationalU32(rat, order, 3, 4)
		num, den := readRationalU32(rat, order)
		c.Assert(num, qt.Equals, uint32(3))
		c.Assert(den, qt.Equals, uint32(4))

		srat := make([]byte, 8)
		writeRationalI32(srat, order, -3, 4)
		snum, sden := readRationalI32(srat, order)
		c.Assert(snum, qt.Equals, int32(-3))
		c.Assert(sden, qt.Equals, int32(4))

		f4 := make([]byte, 4)
		writeFloat32(f4, order, 1.5)
		c.Assert(readFloat32(f4, order), qt.Equals, float32(1.5))

		f8 := make([]byte, 8)
		writeFloat64(f8, order, 1.5)
		c.Assert(readFloat64(f8, order), qt.Equals, float64(1.5))
	}
}

// TestValueToStringRoundTrip covers law 4: Value(s).toString() == s for
// string variants, plus int.toRational() == (int, 1).
func TestValueToStringRoundTrip(t *testing.T) {
	c := qt.New(t)

	c.Assert(NewValue("hello").ToString(), qt.Equals, "hello")
	c.Assert(NewValue("").ToString(), qt.Equals, "")

	r, ok := NewValue(int32(7)).ToRational()
	c.Assert(ok, qt.IsTrue)
	c.Assert(r.Num(), qt.Equals, int32(7))
	c.Assert(r.Den(), qt.Equals, int32(1))
}

// TestRatZeroDenominator covers the boundary behavior: NewRat with
// denominator 0 returns an error instead of trapping, and a Value that
// holds no number reports ok=false from ToRational.
func TestRatZeroDenominator(t *testing.T) {
	c := qt.New(t)

	_, err := NewRat[uint32](1, 0)
	c.Assert(err, qt.Not(qt.IsNil))

	_, ok := NewValue("not a number").ToRational()
	c.Assert(ok, qt.IsFalse)
}

// TestFloatToUint32Boundary covers the boundary behavior: out-of-range
// floats (negative, or beyond uint32 max) return ok=false rather than
// wrapping or trapping.
func TestFloatToUint32Boundary(t *testing.T) {
	c := qt.New(t)

	_, ok := floatToUint32(-0.1)
	c.Assert(ok, qt.IsFalse)

	_, ok = floatToUint32(4.294e9)
	c.Assert(ok, qt.IsFalse)

	v, ok := floatToUint32(42)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, uint32(42))
}
