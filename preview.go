// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"

	"github.com/nfnt/resize"
)

// ExtractPreviews enumerates every preview/thumbnail embedded in img,
// the Go equivalent of exiv2's PreviewManager::getPreviewPropertiesList
// + getPreviewImage pair, generalized from "properties then fetch" into
// one pass since this module keeps the whole container in memory
// anyway. Grounded on include/exiv2/preview.hpp's PreviewImage
// (mimeType/size/width/height). It covers two source kinds: the Exif
// IFD1 thumbnail and XMP's xapGImg inline thumbnail. Maker-note previews
// and the PSD thumbnail IRB (0x040c/0x0409) are not extracted.
func ExtractPreviews(img *Image, rawBytes []byte) []PreviewImage {
	var out []PreviewImage
	if p, ok := extractIFD1Thumbnail(img, rawBytes); ok {
		out = append(out, p)
	}
	out = append(out, extractXMPThumbnails(img)...)
	return out
}

// extractIFD1Thumbnail reads the "ThumbnailOffset"/"ThumbnailLength"
// datums metadecoder_exif.go's decode already resolves into an absolute
// file offset (see tagNameThumbnailOffset), and slices the thumbnail
// bytes out of the original file buffer.
func extractIFD1Thumbnail(img *Image, rawBytes []byte) (PreviewImage, bool) {
	offD, ok := img.Exif.Get(Datum{Family: EXIF, Group: "IFD1", Tag: "ThumbnailOffset"}.Key())
	if !ok {
		return PreviewImage{}, false
	}
	lenD, ok := img.Exif.Get(Datum{Family: EXIF, Group: "IFD1", Tag: "ThumbnailLength"}.Key())
	if !ok {
		return PreviewImage{}, false
	}
	off, offOK := toUint(offD.Value.Any())
	n, nOK := toUint(lenD.Value.Any())
	if !offOK || !nOK || off+n > uint64(len(rawBytes)) {
		return PreviewImage{}, false
	}
	data := rawBytes[off : off+n]
	w, h := jpegDimensions(data)
	return PreviewImage{Source: "IFD1", Data: data, Width: w, Height: h, MimeType: "image/jpeg"}, true
}

func toUint(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int:
		return uint64(t), true
	default:
		return 0, false
	}
}

// extractXMPThumbnails decodes the base64-encoded xapGImg thumbnail
// XMP carries inline (Adobe's "xap:Thumbnails" array, addressed here by
// its flattened dc-style key since this module's XMP decode folds RDF
// attributes into flat Datum entries rather than nested structures).
func extractXMPThumbnails(img *Image) []PreviewImage {
	var out []PreviewImage
	for _, d := range img.Xmp.All() {
		if d.Tag != "image" || d.Group != "xapGImg" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(d.Value.ToString())
		if err != nil {
			continue
		}
		w, h := jpegDimensions(raw)
		out = append(out, PreviewImage{Source: "XMP-xapGImg", Data: raw, Width: w, Height: h, MimeType: "image/jpeg"})
	}
	return out
}

func jpegDimensions(data []byte) (int, int) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// Resize re-encodes a JPEG preview to the given dimensions using
// github.com/nfnt/resize, for callers that want a smaller preview
// without a full image-decode round trip through the original
// container. Only JPEG previews are supported; others are returned
// unchanged.
func (p PreviewImage) Resize(width, height uint) (PreviewImage, error) {
	if p.MimeType != "image/jpeg" {
		return p, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return PreviewImage{}, newErrorWrap(KindCorruptedMetadata, err)
	}
	resized := resize.Resize(width, height, img, resize.Lanczos3)

	var buf bytesBuffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return PreviewImage{}, newErrorWrap(KindWriteFailed, err)
	}
	return PreviewImage{
		Source:   p.Source,
		Data:     buf.Bytes(),
		Width:    int(width),
		Height:   int(height),
		MimeType: "image/jpeg",
	}, nil
}
