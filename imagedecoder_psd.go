// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/binary"
)

// imageDecoderPSD reads the Exif/IPTC/XMP metadata embedded in a
// Photoshop (PSD/PSB) file's Image Resource section, following the same
// decode() contract as the other imageDecoder* types (imagemeta.go's
// switch dispatches PSD here). Grounded on original_source's
// psdimage.cpp (PsdImage::readMetadata/readResourceBlock): a fixed
// 26-byte file header, a length-prefixed color-mode-data section to
// skip, then a length-prefixed stream of "8BIM" resource blocks.
type imageDecoderPSD struct {
	*baseStreamingDecoder
}

const (
	psdResourceIPTC = uint16(0x0404)
	psdResourceExif = uint16(0x0422)
	psdResourceXMP  = uint16(0x0424)
)

func (e *imageDecoderPSD) decode() error {
	sig := e.read4()
	if sig != 0x38425053 { // "8BPS"
		return nil
	}
	e.skip(2) // version
	e.skip(6) // reserved
	e.skip(2) // channels
	rows := int(e.read4())
	columns := int(e.read4())
	e.skip(2) // depth
	e.skip(2) // mode

	if e.opts.Sources.Has(CONFIG) {
		e.result.ImageConfig = ImageConfig{Width: columns, Height: rows}
	}

	colorModeDataLen := e.read4()
	e.skip(int64(colorModeDataLen))

	resourcesLength := int64(e.read4())
	sources := e.opts.Sources.Remove(CONFIG)

	for resourcesLength > 0 && !sources.IsZero() {
		if resourcesLength < 8 {
			return nil
		}
		sig2 := e.readBytesVolatile(4)
		resourcesLength -= 4
		if !bytes.Equal(sig2, []byte(photoshopIRBMarker)) {
			return nil
		}
		resourceID := e.read2()
		resourcesLength -= 2

		nameLen := int64(e.read1())
		resourcesLength--
		padded := nameLen
		if padded%2 == 0 {
			padded++ // Pascal string padded to even total including the length byte
		}
		e.skip(padded)
		resourcesLength -= padded

		if resourcesLength < 4 {
			return nil
		}
		dataSize := int64(e.read4())
		resourcesLength -= 4
		if dataSize > resourcesLength {
			return nil
		}

		switch {
		case resourceID == psdResourceIPTC && sources.Has(IPTC):
			sources = sources.Remove(IPTC)
			r, err := e.bufferedReader(dataSize)
			if err != nil {
				return err
			}
			iptcDec := newMetaDecoderIPTC(r, e.opts)
			err = iptcDec.decodeBlocks()
			r.Close()
			if err != nil {
				return err
			}
		case resourceID == psdResourceExif && sources.Has(EXIF):
			sources = sources.Remove(EXIF)
			r, err := e.bufferedReader(dataSize)
			if err != nil {
				return err
			}
			exifDec := newMetaDecoderEXIF(r, binary.BigEndian, 0, e.opts)
			err = exifDec.decode()
			r.Close()
			if err != nil {
				return err
			}
		case resourceID == psdResourceXMP && sources.Has(XMP):
			sources = sources.Remove(XMP)
			r, err := e.bufferedReader(dataSize)
			if err != nil {
				return err
			}
			err = decodeXMP(r, e.opts)
			r.Close()
			if err != nil {
				return err
			}
		default:
			e.skip(dataSize)
		}

		consumed := dataSize
		if dataSize%2 == 1 {
			e.skip(1)
			consumed++
		}
		resourcesLength -= consumed
	}

	return nil
}

// encodePSDResources rebuilds a PSD image-resources stream from its
// decoded irbBlock list plus freshly encoded IPTC/Exif/XMP payloads,
// used by the write path (spec §8 scenario 4) in place of
// Photoshop::setIptcIrb, generalized to all three metadata families
// instead of just IPTC.
func encodePSDResources(existing []irbBlock, iptc, exif, xmp []byte) []byte {
	blocks := setIRBBlock(existing, psdResourceIPTC, "", emptyToNil(iptc))
	blocks = setIRBBlock(blocks, psdResourceExif, "", emptyToNil(exif))
	blocks = setIRBBlock(blocks, psdResourceXMP, "", emptyToNil(xmp))
	return encodeIRBStream(blocks)
}

func emptyToNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// writePSD rewrites a full PSD file into out, copying header/color-mode
// data byte for byte from src and replacing only the image-resources
// section, matching exiv2's "rewrite everything else unchanged"
// approach to in-place metadata updates.
func writePSD(out *bytesBuffer, header []byte, colorModeData []byte, resources []byte, restOfFile []byte) error {
	out.Write(header)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(colorModeData)))
	out.Write(lenBuf[:])
	out.Write(colorModeData)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(resources)))
	out.Write(lenBuf[:])
	out.Write(resources)
	out.Write(restOfFile)
	return nil
}
