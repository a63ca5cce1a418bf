// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import "encoding/binary"

// GIF, BMP, and TGA carry no Exif/IPTC/XMP metadata worth a full
// decoder (exiv2's own GifImage::writeMetadata is an unconditional
// "not implemented" stub, and BMP/TGA have no standard metadata
// container at all); these three formats are geometry-only supplemented
// features, reporting just ImageConfig the way
// original_source/src/gifimage.cpp's GifImage::readMetadata does
// (a 4-byte little-endian width/height read right after the
// signature, nothing else).
const (
	// GIF is the CompuServe GIF image format (geometry only, no metadata support).
	GIF ImageFormat = iota + 100
	// BMP is the Windows Bitmap image format (geometry only, no metadata support).
	BMP
	// TGA is the Truevision TGA image format (geometry only, no metadata support).
	TGA
)

type imageDecoderGeometry struct {
	*baseStreamingDecoder
}

func (e *imageDecoderGeometry) decode() error {
	if !e.opts.Sources.Has(CONFIG) {
		return nil
	}
	switch e.format {
	case GIF:
		return e.decodeGIF()
	case BMP:
		return e.decodeBMP()
	case TGA:
		return e.decodeTGA()
	}
	return nil
}

// decodeGIF skips the 6-byte "GIF87a"/"GIF89a" signature and reads the
// little-endian width/height that immediately follows, per
// GifImage::readMetadata.
func (e *imageDecoderGeometry) decodeGIF() error {
	e.skip(6)
	b := e.readBytesVolatile(4)
	if len(b) < 4 {
		return nil
	}
	e.result.ImageConfig = ImageConfig{
		Width:  int(binary.LittleEndian.Uint16(b[0:2])),
		Height: int(binary.LittleEndian.Uint16(b[2:4])),
	}
	return nil
}

// decodeBMP reads the 14-byte BITMAPFILEHEADER (skipped) and the
// leading fields of BITMAPINFOHEADER: a 4-byte header size, then
// 4-byte little-endian width and (signed, possibly negative for a
// top-down bitmap) height.
func (e *imageDecoderGeometry) decodeBMP() error {
	e.skip(14)
	e.skip(4) // BITMAPINFOHEADER.biSize
	b := e.readBytesVolatile(8)
	if len(b) < 8 {
		return nil
	}
	width := int(int32(binary.LittleEndian.Uint32(b[0:4])))
	height := int(int32(binary.LittleEndian.Uint32(b[4:8])))
	if height < 0 {
		height = -height
	}
	e.result.ImageConfig = ImageConfig{Width: width, Height: height}
	return nil
}

// decodeTGA reads the 18-byte TGA header's width/height fields at
// offsets 12 and 14 (little-endian uint16 each); TGA has no magic
// signature, so callers identify it by extension rather than sniffing.
func (e *imageDecoderGeometry) decodeTGA() error {
	b := e.readBytesVolatile(18)
	if len(b) < 18 {
		return nil
	}
	e.result.ImageConfig = ImageConfig{
		Width:  int(binary.LittleEndian.Uint16(b[12:14])),
		Height: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	return nil
}
