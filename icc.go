// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/binary"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ICC profiles pass through byte-verbatim everywhere in this module
// (spec §1); ICCWhitePoint is the one sanctioned exception, a
// convenience reader for the profile's media white point tag ('wtpt'),
// useful for a caller deciding whether two images share a color space
// without writing an ICC parser of their own.
const iccHeaderSize = 128

// ICCWhitePoint locates and decodes the 'wtpt' tag (an XYZType entry:
// a 12-byte header plus three s15Fixed16Number XYZ components) from a
// raw ICC profile, per the ICC.1:2010 spec's tag table layout (4-byte
// tag count at offset 128, then 12-byte tag-signature/offset/size
// entries). Returns ok=false if the tag is absent or the profile is
// too short to contain a valid tag table.
func ICCWhitePoint(profile []byte) (c colorful.Color, ok bool) {
	if len(profile) < iccHeaderSize+4 {
		return colorful.Color{}, false
	}
	tagCount := binary.BigEndian.Uint32(profile[iccHeaderSize:])
	entriesStart := iccHeaderSize + 4
	for i := uint32(0); i < tagCount; i++ {
		entryOff := entriesStart + int(i)*12
		if entryOff+12 > len(profile) {
			return colorful.Color{}, false
		}
		sig := profile[entryOff : entryOff+4]
		if string(sig) != "wtpt" {
			continue
		}
		dataOff := binary.BigEndian.Uint32(profile[entryOff+4:])
		dataSize := binary.BigEndian.Uint32(profile[entryOff+8:])
		if dataSize < 20 || int(dataOff)+20 > len(profile) {
			return colorful.Color{}, false
		}
		xyz := profile[dataOff+8:]
		x := s15Fixed16(binary.BigEndian.Uint32(xyz[0:]))
		y := s15Fixed16(binary.BigEndian.Uint32(xyz[4:]))
		z := s15Fixed16(binary.BigEndian.Uint32(xyz[8:]))
		return colorful.Xyz(x, y, z), true
	}
	return colorful.Color{}, false
}

func s15Fixed16(raw uint32) float64 {
	return float64(int32(raw)) / 65536.0
}
