// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import "bytes"

// xmpPacketMarker is the leading bytes of a raw XMP packet, used to
// sniff/splice it out of a container-specific carrier (JPEG APP1, PSD
// IRB 0x0424, PNG iTXt/eXIf, BMFF 'uuid' box). markerXMP in
// metadecoder_exif.go already has this for the JPEG APP1 case; this is
// the generic form locateXMPPacket below searches for.
var xmpPacketMarker = []byte("<?xpacket begin=")

// photoshopIRBMarker and the IPTC/XMP resource IDs come from
// original_source/include/exiv2/photoshop.hpp's Photoshop::irbId_/iptc_/
// a 0x0424 XMP resource ID documented alongside it (Photoshop's own
// "Image Resource Block" convention, reused verbatim by the PSD
// container and by the APP13 segment embedded in JPEG).
const (
	photoshopIRBMarker   = "8BIM"
	photoshopIPTCBlockID = uint16(0x0404)
	photoshopXMPBlockID  = uint16(0x0424)
)

// irbBlock is one decoded Photoshop Image Resource Block: a 4-byte
// "8BIM" signature, a 2-byte resource ID, a Pascal-string name (padded
// to even length, the same quirk metadecoder_iptc.go's decodeBlocks
// already handles for the embedded-IPTC case), and a 4-byte big-endian
// size followed by size bytes of data (even-padded).
type irbBlock struct {
	ID   uint16
	Name string
	Data []byte
}

// parseIRBStream splits a Photoshop IRB stream (the payload of a JPEG
// APP13 "Photoshop 3.0\x00" segment or a PSD's image-resources section)
// into its constituent blocks, tolerating trailing garbage the way
// metadecoder_iptc.go's decodeBlocks loop does (stops cleanly at the
// first non-"8BIM" signature instead of erroring).
func parseIRBStream(b []byte) []irbBlock {
	var blocks []irbBlock
	for len(b) >= 4 {
		if !bytes.Equal(b[:4], []byte(photoshopIRBMarker)) {
			break
		}
		b = b[4:]
		if len(b) < 2 {
			break
		}
		id := uint16(b[0])<<8 | uint16(b[1])
		b = b[2:]

		if len(b) < 1 {
			break
		}
		nameLen := int(b[0])
		nameStart := 1
		nameEnd := nameStart + nameLen
		if nameLen == 0 {
			nameEnd = nameStart + 1 // one padding byte after the empty-name length byte
		} else if nameLen%2 == 0 {
			nameEnd++ // odd total (length byte + name) rounds up to even
		}
		if len(b) < nameEnd {
			break
		}
		name := string(b[nameStart : nameStart+nameLen])
		b = b[nameEnd:]

		if len(b) < 4 {
			break
		}
		size := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		b = b[4:]
		if uint32(len(b)) < size {
			break
		}
		data := b[:size]
		b = b[size:]
		if size%2 == 1 && len(b) > 0 {
			b = b[1:] // padding byte
		}

		blocks = append(blocks, irbBlock{ID: id, Name: name, Data: data})
	}
	return blocks
}

// encodeIRBStream is the inverse of parseIRBStream, used by jpeg.go's
// APP13 writer and imagedecoder_psd.go's encodePSDResources to splice a
// new or updated block (typically
// the XMP or IPTC resource) back into the IRB stream while leaving
// unrelated blocks byte-identical, per spec §8 scenario 4's "located in
// ascending-id order among existing IRBs".
func encodeIRBStream(blocks []irbBlock) []byte {
	var buf bytes.Buffer
	for _, blk := range blocks {
		buf.WriteString(photoshopIRBMarker)
		buf.WriteByte(byte(blk.ID >> 8))
		buf.WriteByte(byte(blk.ID))

		nameLen := len(blk.Name)
		buf.WriteByte(byte(nameLen))
		buf.WriteString(blk.Name)
		if nameLen == 0 {
			buf.WriteByte(0)
		} else if nameLen%2 == 0 {
			buf.WriteByte(0)
		}

		size := uint32(len(blk.Data))
		buf.WriteByte(byte(size >> 24))
		buf.WriteByte(byte(size >> 16))
		buf.WriteByte(byte(size >> 8))
		buf.WriteByte(byte(size))
		buf.Write(blk.Data)
		if size%2 == 1 {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// setIRBBlock inserts or replaces the block with the given id, keeping
// existing blocks and ascending-id ordering for a freshly inserted one
// (spec §8 scenario 4). Passing nil data removes the block, matching
// Photoshop::setIptcIrb's "removes the IPTC block if there is no new
// IPTC data to write" behavior.
func setIRBBlock(blocks []irbBlock, id uint16, name string, data []byte) []irbBlock {
	for i, blk := range blocks {
		if blk.ID == id {
			if data == nil {
				return append(blocks[:i], blocks[i+1:]...)
			}
			blocks[i].Data = data
			return blocks
		}
	}
	if data == nil {
		return blocks
	}
	insertAt := len(blocks)
	for i, blk := range blocks {
		if blk.ID > id {
			insertAt = i
			break
		}
	}
	out := make([]irbBlock, 0, len(blocks)+1)
	out = append(out, blocks[:insertAt]...)
	out = append(out, irbBlock{ID: id, Name: name, Data: data})
	out = append(out, blocks[insertAt:]...)
	return out
}

// locateXMPPacket finds the raw `<?xpacket ... <?xpacket end=...?>` span
// inside an arbitrary byte buffer, for carriers where the packet isn't
// already isolated the way the JPEG APP1/PSD IRB paths isolate it by
// segment framing. No decoder or encoder in this package calls it.
func locateXMPPacket(b []byte) (start, end int, ok bool) {
	start = bytes.Index(b, xmpPacketMarker)
	if start < 0 {
		return 0, 0, false
	}
	const tail = "<?xpacket end="
	tailIdx := bytes.Index(b[start:], []byte(tail))
	if tailIdx < 0 {
		return 0, 0, false
	}
	rest := b[start+tailIdx:]
	closeIdx := bytes.IndexByte(rest, '>')
	if closeIdx < 0 {
		return 0, 0, false
	}
	return start, start + tailIdx + closeIdx + 1, true
}
