// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// exifToXmpKey and iptcToXmpKey map a Group/Tag pair in one family to
// its conventional counterpart in another, grounded on exiv2's
// `convert.cpp` conversion table (a hand-maintained list of equivalent
// tags across the three families; reproduced here only for the subset
// this module's catalog already names, per spec §4.9's non-goal on
// being an exhaustive metadata-working-group mapping).
var exifToXmpKey = map[string]string{
	"Image.DateTime":             "xmp.ModifyDate",
	"Photo.DateTimeOriginal":     "xmp.DateTimeOriginal",
	"Image.Artist":               "dc.creator",
	"Image.Copyright":            "dc.rights",
	"Image.ImageDescription":     "dc.description",
	"Photo.ISOSpeedRatings":      "exif.ISOSpeedRatings",
}

var iptcToXmpKey = map[string]string{
	"IPTCApplication.Keywords":     "dc.subject",
	"IPTCApplication.Caption":      "dc.description",
	"IPTCApplication.Byline":       "dc.creator",
	"IPTCApplication.Copyright": "dc.rights",
	"IPTCApplication.City":         "photoshop.City",
	"IPTCApplication.DateCreated":  "photoshop.DateCreated",
}

// ConvertOptions controls the copy-vs-move behavior of the conversion
// bridge functions, mirroring convert.hpp's copy*/move* function pairs
// (move additionally removes the converted source datum).
type ConvertOptions struct {
	Move bool
}

// CopyExifToXmp copies Exif datums with a known XMP counterpart into
// xmp, the Go equivalent of exiv2's copyExifToXmp/moveExifToXmp pair.
func CopyExifToXmp(exif, xmp *MetadataContainer, opts ConvertOptions) {
	convertContainer(exif, xmp, exifToXmpKey, opts)
}

// CopyIptcToXmp is the IPTC analogue of CopyExifToXmp.
func CopyIptcToXmp(iptc, xmp *MetadataContainer, opts ConvertOptions) {
	convertContainer(iptc, xmp, iptcToXmpKey, opts)
}

// xmpToExifKey is exifToXmpKey inverted, built once rather than
// hand-duplicated, the same "one table, read both ways" shape
// convert.hpp's copyXmpToExif/copyExifToXmp pair assumes.
var xmpToExifKey = invertKeyTable(exifToXmpKey)

func invertKeyTable(m map[string]string) map[string]string {
	inv := make(map[string]string, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// CopyXmpToExif is the inverse of CopyExifToXmp: it copies XMP datums
// with a known Exif counterpart back into exif, resolving the
// destination tag's numeric id via metadecoder_exif_fields.go's
// lookupExifTagNumber (an XMP Datum carries no TagNumber of its own)
// so the result is encodable by tiff.go's write path.
func CopyXmpToExif(xmp, exif *MetadataContainer, opts ConvertOptions) {
	for _, d := range xmp.All() {
		exifKey, ok := xmpToExifKey[d.Group+"."+d.Tag]
		if !ok {
			continue
		}
		group, tag, ok := splitXmpKey(exifKey)
		if !ok {
			continue
		}
		tagNumber, _ := lookupExifTagNumber(tag)
		exif.Add(Datum{Family: EXIF, Group: group, Tag: tag, TagNumber: uint32(tagNumber), Value: d.Value})
		if opts.Move {
			xmp.Remove(d.Key())
		}
	}
}

func convertContainer(src, dst *MetadataContainer, table map[string]string, opts ConvertOptions) {
	for _, d := range src.All() {
		xmpKey, ok := table[d.Group+"."+d.Tag]
		if !ok {
			continue
		}
		group, tag, ok := splitXmpKey(xmpKey)
		if !ok {
			continue
		}
		dst.Add(Datum{Family: XMP, Group: group, Tag: tag, Value: d.Value})
		if opts.Move {
			src.Remove(d.Key())
		}
	}
}

func splitXmpKey(k string) (group, tag string, ok bool) {
	for i := 0; i < len(k); i++ {
		if k[i] == '.' {
			return k[:i], k[i+1:], true
		}
	}
	return "", "", false
}

// charsetEncoding resolves an IIM4 CodedCharacterSet escape sequence
// (resolveCodedCharacterSet in metadecoder_iptc.go already detects
// "\x1b%G" for UTF-8) or a handful of common charset names to a
// golang.org/x/text encoding.Encoding, generalizing convert.hpp's
// convertStringCharset beyond the Windows-only table it documents.
func charsetEncoding(name string) encoding.Encoding {
	switch name {
	case "ISO-8859-1", "iso-8859-1", "Latin1":
		return charmap.ISO8859_1
	case "UCS-2BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "UCS-2LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	default:
		return nil // UTF-8 and unrecognized names pass through unchanged
	}
}

// ConvertStringCharset transcodes s from one named charset to another,
// the Go equivalent of convert.hpp's convertStringCharset, minus the
// Windows/iconv fallback split (golang.org/x/text covers both cases
// uniformly here).
func ConvertStringCharset(s, from, to string) (string, error) {
	fromEnc := charsetEncoding(from)
	toEnc := charsetEncoding(to)

	utf8 := s
	if fromEnc != nil {
		r := fromEnc.NewDecoder().Reader(bytes.NewReader([]byte(s)))
		b, err := io.ReadAll(r)
		if err != nil {
			return "", newErrorWrap(KindInvalidIconvEncoding, err)
		}
		utf8 = string(b)
	}
	if toEnc == nil {
		return utf8, nil
	}
	w := toEnc.NewEncoder().Reader(bytes.NewReader([]byte(utf8)))
	b, err := io.ReadAll(w)
	if err != nil {
		return "", newErrorWrap(KindInvalidIconvEncoding, err)
	}
	return string(b), nil
}
