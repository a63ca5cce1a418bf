// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import "io"

// Image is the in-memory aggregate of everything this module can read
// from or write back to a container: the three metadata families, a
// byte-verbatim ICC profile, and whatever preview/thumbnail images the
// container carries. It is the write-side analogue of the read-only
// Tags type (imagemeta.go): Tags is a flat, callback-populated view for
// one-shot decoding, while Image is addressable and mutable so a caller
// can load, edit a handful of datums, and write back.
type Image struct {
	Format ImageFormat

	Exif *MetadataContainer
	Iptc *MetadataContainer
	Xmp  *MetadataContainer

	// ICCProfile is the raw, byte-verbatim ICC profile payload, if any
	// (spec §1: ICC is transported as-is, never parsed beyond
	// passthrough for the core; icc.go's white-point helper is the one
	// sanctioned exception).
	ICCProfile []byte

	Previews []PreviewImage
}

// NewImage returns an empty Image ready to be populated via its
// MetadataContainer Add methods and then passed to an Encode* function.
func NewImage(format ImageFormat) *Image {
	return &Image{
		Format: format,
		Exif:   newMetadataContainer(EXIF),
		Iptc:   newMetadataContainer(IPTC),
		Xmp:    newMetadataContainer(XMP),
	}
}

// PreviewImage is one embedded preview/thumbnail, per exiv2
// `include/exiv2/preview.hpp`'s PreviewImage: already-encoded bytes
// (almost always JPEG) plus the metadata needed to tell previews apart
// without decoding them.
type PreviewImage struct {
	// Source names where the preview was found: "IFD1" or
	// "XMP-xapGImg", the two sources ExtractPreviews reads, mirroring
	// preview.hpp's PreviewId enumeration loosely (kept as a string
	// rather than an enum).
	Source string
	Data   []byte
	Width  int
	Height int
	// MimeType is e.g. "image/jpeg"; PSD/TIFF thumbnails are sometimes
	// raw pixel data instead, in which case this is empty.
	MimeType string
}

// LoadImage decodes format from r, aggregating tags the same way the
// teacher's Tags type does (via Options.HandleTag), then bridges the
// result into a fresh, editable Image via PopulateFromTags.
func LoadImage(format ImageFormat, r io.ReadSeeker) (*Image, error) {
	var tags Tags
	opts := Options{
		R:           r,
		ImageFormat: format,
		HandleTag: func(ti TagInfo) error {
			tags.Add(ti)
			return nil
		},
	}
	if _, err := Decode(opts); err != nil {
		return nil, err
	}
	img := NewImage(format)
	PopulateFromTags(img, tags)
	return img, nil
}

// PopulateFromTags fills img's three containers from a Tags snapshot
// (the result of Decode's default aggregation style, see imagemeta_test.go),
// letting callers bridge the read-only decode path into the editable
// Image model without duplicating tag-source dispatch logic.
func PopulateFromTags(img *Image, tags Tags) {
	for _, ti := range tags.All() {
		container := img.containerFor(ti.Source)
		if container == nil {
			continue
		}
		container.Add(Datum{
			Family: ti.Source,
			Group:  firstToken(ti.Namespace),
			Tag:    ti.Tag,
			Value:  NewValue(ti.Value),
		})
	}
}

func (img *Image) containerFor(s Source) *MetadataContainer {
	switch s {
	case EXIF:
		return img.Exif
	case IPTC:
		return img.Iptc
	case XMP:
		return img.Xmp
	default:
		return nil
	}
}
