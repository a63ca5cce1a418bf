// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/binary"
)

// photoshop3Header is the fixed 14-byte prefix of a JPEG APP13 segment
// that carries a Photoshop IRB stream, per
// original_source/include/exiv2/photoshop.hpp's Photoshop::ps3Id_.
var photoshop3Header = []byte("Photoshop 3.0\x00")

// EncodeJPEGMetadata rewrites src, a complete JPEG file, replacing its
// APP1 Exif segment, APP13 Photoshop/IPTC segment and APP1 XMP segment
// with freshly encoded ones built from exif/iptc/xmpPacket, leaving
// every other segment (APP0/JFIF, quantization/Huffman tables, scan
// data, ICC APP2 chunks, ...) byte-identical. A nil container/packet
// removes that segment instead of writing an empty one, the same
// "absence means remove" convention xmp.go's setIRBBlock already
// follows for IRB blocks.
//
// This walks src's own segment framing (the write-side mirror of
// imageDecoderJPEG.decode's read loop) rather than trying to track
// offsets computed during a prior decode, so it works from nothing
// but the original bytes and the new metadata.
func EncodeJPEGMetadata(src []byte, exif *MetadataContainer, iptc *MetadataContainer, xmpPacket []byte, order binary.ByteOrder, bigTIFF bool) ([]byte, error) {
	if len(src) < 2 || src[0] != 0xff || src[1] != 0xd8 {
		return nil, errInvalidFormat
	}

	var out bytesBuffer
	out.Write(src[:2]) // SOI
	pos := 2

	wroteEXIF, wroteIPTC, wroteXMP := exif == nil, iptc == nil, len(xmpPacket) == 0

	for pos+4 <= len(src) {
		if src[pos] != 0xff {
			break
		}
		marker := src[pos+1]
		if marker == 0xd8 || marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			// Markers with no length/payload.
			out.Write(src[pos : pos+2])
			pos += 2
			continue
		}
		if marker == 0xda {
			// Start of scan: copy everything from here to EOF verbatim
			// and flush any metadata segments that were never replaced
			// (the source had no prior segment of that kind).
			if err := appendMissingSegments(&out, exif, iptc, xmpPacket, order, bigTIFF, wroteEXIF, wroteIPTC, wroteXMP); err != nil {
				return nil, err
			}
			out.Write(src[pos:])
			return out.Bytes(), nil
		}

		length := int(binary.BigEndian.Uint16(src[pos+2 : pos+4]))
		if length < 2 || pos+2+length > len(src) {
			return nil, errInvalidFormat
		}
		payload := src[pos+4 : pos+2+length]

		switch {
		case marker == 0xe1 && len(payload) >= 6 && string(payload[:4]) == "Exif":
			wroteEXIF = true
			if exif != nil {
				if err := appendEXIFSegment(&out, exif, order, bigTIFF); err != nil {
					return nil, err
				}
			}
		case marker == 0xe1 && len(payload) >= len(markerXMP) && bytesHasPrefix(payload, markerXMP):
			wroteXMP = true
			if len(xmpPacket) > 0 {
				appendXMPSegment(&out, xmpPacket)
			}
		case marker == 0xed && len(payload) >= len(photoshop3Header) && bytesHasPrefix(payload, photoshop3Header):
			wroteIPTC = true
			if iptc != nil {
				if err := appendIPTCSegment(&out, iptc, payload[len(photoshop3Header):]); err != nil {
					return nil, err
				}
			}
		default:
			out.Write(src[pos : pos+2+length])
		}

		pos += 2 + length
	}

	return out.Bytes(), nil
}

func bytesHasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func appendMissingSegments(out *bytesBuffer, exif *MetadataContainer, iptc *MetadataContainer, xmpPacket []byte, order binary.ByteOrder, bigTIFF bool, wroteEXIF, wroteIPTC, wroteXMP bool) error {
	if !wroteEXIF && exif != nil {
		if err := appendEXIFSegment(out, exif, order, bigTIFF); err != nil {
			return err
		}
	}
	if !wroteIPTC && iptc != nil {
		if err := appendIPTCSegment(out, iptc, nil); err != nil {
			return err
		}
	}
	if !wroteXMP && len(xmpPacket) > 0 {
		appendXMPSegment(out, xmpPacket)
	}
	return nil
}

func appendEXIFSegment(out *bytesBuffer, c *MetadataContainer, order binary.ByteOrder, bigTIFF bool) error {
	tree := containerToIFDTree(c, order)

	var tiffBuf bytesBuffer
	if _, err := writeTiffChain(&tiffBuf, order, bigTIFF, tree); err != nil {
		return err
	}

	payload := append([]byte("Exif\x00\x00"), tiffBuf.Bytes()...)
	writeJPEGSegment(out, 0xe1, payload)
	return nil
}

func appendIPTCSegment(out *bytesBuffer, c *MetadataContainer, existingOtherBlocks []byte) error {
	iptcData, err := EncodeIptcFromContainer(c)
	if err != nil {
		return err
	}
	blocks := parseIRBStream(existingOtherBlocks)
	blocks = setIRBBlock(blocks, photoshopIPTCBlockID, "", iptcData)
	payload := append(append([]byte(nil), photoshop3Header...), encodeIRBStream(blocks)...)
	writeJPEGSegment(out, 0xed, payload)
	return nil
}

func appendXMPSegment(out *bytesBuffer, xmpPacket []byte) {
	payload := append(append([]byte(nil), markerXMP...), xmpPacket...)
	writeJPEGSegment(out, 0xe1, payload)
}

// writeJPEGSegment writes a marker, its 2-byte big-endian length
// (payload length plus the 2 length bytes themselves, matching
// imageDecoderJPEG.decode's `length -= 2` on the way in) and the
// payload. Segments longer than 65533 bytes don't fit in one marker;
// exiv2 splits an oversized XMP packet across an APP1 primary segment
// plus APP1 "extended XMP" segments, which is out of scope here.
func writeJPEGSegment(out *bytesBuffer, marker byte, payload []byte) {
	out.Write([]byte{0xff, marker})
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
	out.Write(lenBuf[:])
	out.Write(payload)
}
