// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"fmt"
	"strings"
)

// TagDescriptor is a catalog entry describing one known tag, extending
// the bare `tag number -> name` map in metadecoder_exif_fields.go with
// the label/description/default-type/count columns spec §4.4 calls for.
// It is intentionally a thin, data-only struct: the decode path keeps
// using the existing exifFields/iptcRecordFields maps for its hot loop,
// catalogDescribe wraps them for callers that want the fuller record.
type TagDescriptor struct {
	Tag          uint32
	Name         string
	Label        string
	Description  string
	Group        string
	Section      string
	DefaultType  ValueKind
	DefaultCount int
}

// catalogDescribeExif returns a TagDescriptor for an Exif/TIFF tag number,
// falling back to the UnknownPrefix hex form metadecoder_exif.go's
// decodeTag already uses for tags it doesn't recognize.
func catalogDescribeExif(tag uint16, group string) TagDescriptor {
	if names, ok := exifFields[tag]; ok {
		name := firstToken(names)
		return TagDescriptor{
			Tag:   uint32(tag),
			Name:  name,
			Label: humanizeCamelCase(name),
			Group: group,
		}
	}
	name := fmt.Sprintf("%s0x%x", UnknownPrefix, tag)
	return TagDescriptor{Tag: uint32(tag), Name: name, Group: group}
}

// catalogDescribeIptc mirrors catalogDescribeExif for an IPTC (record,
// dataset) pair using the iptcRecordFields table populated from the
// embedded metadecoder_iptc_fields.json.
func catalogDescribeIptc(record, dataset uint8) TagDescriptor {
	if field, ok := getIptcRecordFieldDef(record, dataset); ok {
		return TagDescriptor{
			Tag:   uint32(dataset),
			Name:  field.Name,
			Label: humanizeCamelCase(field.Name),
			Group: field.RecordName,
		}
	}
	name := fmt.Sprintf("%s%d", UnknownPrefix, dataset)
	return TagDescriptor{Tag: uint32(dataset), Name: name, Group: getIptcRecordName(record)}
}

// firstToken returns the first space-separated alias from a
// multi-name exifFields entry, e.g. "StripOffsets OtherImageStart ..."
// yields "StripOffsets" (metadecoder_exif.go always takes this one too,
// see its name resolution in decodeTag).
func firstToken(names string) string {
	if i := strings.IndexByte(names, ' '); i >= 0 {
		return names[:i]
	}
	return names
}

// humanizeCamelCase turns "DateTimeOriginal" into "Date Time Original",
// a cheap label-from-name derivation used only by catalog lookups, never
// by the hot decode path.
func humanizeCamelCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
