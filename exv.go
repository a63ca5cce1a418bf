// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/binary"
)

// exvSignature is exiv2's own sidecar container marker: a 9-byte
// prefix ("\xff\x01Exiv2\xff\xd9" wraps a raw TIFF/Exif directory the
// same way a JPEG APP1 segment would, but without any surrounding
// image data) — an .exv file is nothing but this prefix followed by a
// TIFF byte stream, letting `tiff.go`'s writer/reader serve both the
// JPEG APP1 payload and the standalone sidecar unchanged.
var exvSignature = []byte{0xff, 0x01, 'E', 'x', 'i', 'v', '2', 0xff, 0xd9}

// imageDecoderEXV reads the lone TIFF/Exif directory out of an .exv
// sidecar by stripping the signature and delegating straight to the
// TIFF decoder, the same way imagedecoder_jpg.go hands its APP1 payload
// to newMetaDecoderEXIF.
type imageDecoderEXV struct {
	*baseStreamingDecoder
}

func (e *imageDecoderEXV) decode() error {
	sig := e.readBytesVolatile(len(exvSignature))
	if !bytes.Equal(sig, exvSignature) {
		return nil
	}
	return (&imageDecoderTIF{baseStreamingDecoder: e.baseStreamingDecoder}).decode()
}

// EncodeEXV serializes img's Exif container as a standalone .exv
// sidecar: the signature, then a full TIFF/Exif byte stream built the
// same way tiff.go's writeTiffChain builds IFD0/IFD1 for any other
// container's Exif block. IPTC/XMP are carried inside the Exif IFD0's
// 0x83bb/0x02bc tags exactly as metadecoder_exif.go already decodes
// them from a JPEG (exiv2 embeds all three families in one TIFF
// structure when there's no host image to hang APP13/XMP segments
// off of).
func EncodeEXV(ifd0 *ifdTree, order binary.ByteOrder, bigTIFF bool) ([]byte, error) {
	var buf bytesBuffer
	buf.Write(exvSignature)
	if _, err := writeTiffChain(&buf, order, bigTIFF, ifd0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
