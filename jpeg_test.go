// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"
)

func minimalJPEG() []byte {
	// SOI, a tiny APP0/JFIF segment, SOS marker (no real scan data), EOI.
	return []byte{
		0xff, 0xd8, // SOI
		0xff, 0xe0, 0x00, 0x10, // APP0, length 16
		'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
		0xff, 0xda, 0x00, 0x02, // SOS, length 2 (no scan header data, fine for this test)
		0xff, 0xd9, // EOI
	}
}

func TestEncodeJPEGMetadataInsertsNewSegments(t *testing.T) {
	c := qt.New(t)

	exif := newMetadataContainer(EXIF)
	exif.Add(Datum{Family: EXIF, Group: "Image", Tag: "Copyright", TagNumber: 0x8298, Value: NewValue("Bjørn Erik Pedersen")})

	iptc := newMetadataContainer(IPTC)
	iptc.Add(Datum{Family: IPTC, Group: "IPTCApplication", Tag: "Headline", TagNumber: 105, Value: NewValue("Sunrise in Spain")})

	xmpPacket := []byte("<?xpacket begin='' id='W5M0MpCehiHzreSzNTczkc9d'?>hello<?xpacket end='w'?>")

	out, err := EncodeJPEGMetadata(minimalJPEG(), exif, iptc, xmpPacket, binary.BigEndian, false)
	c.Assert(err, qt.IsNil)

	c.Assert(out[0], qt.Equals, byte(0xff))
	c.Assert(out[1], qt.Equals, byte(0xd8))

	// The APP1 Exif, APP1 XMP, and APP13 IPTC segments must all appear
	// somewhere before the SOS marker, and the original APP0/JFIF and
	// scan/EOI bytes must survive untouched.
	c.Assert(containsMarkerSegment(out, 0xe1, []byte("Exif\x00\x00")), qt.IsTrue)
	c.Assert(containsMarkerSegment(out, 0xe1, markerXMP), qt.IsTrue)
	c.Assert(containsMarkerSegment(out, 0xed, photoshop3Header), qt.IsTrue)

	tail := out[len(out)-6:]
	c.Assert(tail, qt.DeepEquals, []byte{0xff, 0xda, 0x00, 0x02, 0xff, 0xd9})
}

func TestEncodeJPEGMetadataRejectsNonJPEG(t *testing.T) {
	c := qt.New(t)
	_, err := EncodeJPEGMetadata([]byte("not a jpeg"), nil, nil, nil, binary.BigEndian, false)
	c.Assert(err, qt.Equals, errInvalidFormat)
}

func containsMarkerSegment(b []byte, marker byte, payloadPrefix []byte) bool {
	pos := 2
	for pos+4 <= len(b) {
		if b[pos] != 0xff {
			return false
		}
		m := b[pos+1]
		if m == 0xda {
			return false
		}
		length := int(binary.BigEndian.Uint16(b[pos+2 : pos+4]))
		payload := b[pos+4 : pos+2+length]
		if m == marker && bytesHasPrefix(payload, payloadPrefix) {
			return true
		}
		pos += 2 + length
	}
	return false
}
