// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// iptcDatum is one decoded-or-pending IIM4 dataset, the write-side
// counterpart to metadecoder_iptc.go's inline decodeRecord. Encode
// keeps its own slice type instead of reusing Datum directly so
// repeatable fields (Keywords, Byline, ...) can carry one entry per
// occurrence in insertion order, matching exiv2 iptc.hpp's IptcData
// (a flat, possibly-duplicated-key vector) rather than this module's
// MetadataContainer (one slot per key).
type iptcDatum struct {
	Record  uint8
	Dataset uint8
	Value   []byte
}

// iptcEncoder builds a canonical IIM4 byte stream from a set of datums,
// the inverse of metaDecoderIPTC.decodeRecords/decodeRecord.
type iptcEncoder struct {
	datums []iptcDatum
}

func newIptcEncoder() *iptcEncoder {
	return &iptcEncoder{}
}

// Add appends a dataset value, refusing to duplicate a non-repeatable
// dataset per the IIM4 standard (exiv2 iptc.hpp's Iptcdatum::repeatable
// rule) — callers needing "add to repeatable" semantics (spec §8
// end-to-end scenario 2) call Add once per desired occurrence.
func (e *iptcEncoder) Add(record, dataset uint8, value []byte) error {
	field, ok := getIptcRecordFieldDef(record, dataset)
	if ok && !field.Repeatable {
		for _, d := range e.datums {
			if d.Record == record && d.Dataset == dataset {
				return newError(KindInvalidSettingForImage, "dataset is not repeatable", record, dataset)
			}
		}
	}
	e.datums = append(e.datums, iptcDatum{Record: record, Dataset: dataset, Value: value})
	return nil
}

// Encode writes the datums in canonical order: ascending record, then
// ascending dataset, then insertion order within a repeatable dataset
// (spec §8's "canonical write ordering"). Values longer than 32767
// bytes use the IIM4 extended-length form (high bit set on the 2-byte
// length field followed by a 4-byte real length), per scenario 6's
// 70000-byte roundtrip requirement.
func (e *iptcEncoder) Encode(w *bytes.Buffer) error {
	sorted := make([]iptcDatum, len(e.datums))
	copy(sorted, e.datums)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Record != sorted[j].Record {
			return sorted[i].Record < sorted[j].Record
		}
		return sorted[i].Dataset < sorted[j].Dataset
	})

	for _, d := range sorted {
		w.WriteByte(0x1C)
		w.WriteByte(d.Record)
		w.WriteByte(d.Dataset)
		if err := writeIptcLength(w, len(d.Value)); err != nil {
			return err
		}
		w.Write(d.Value)
	}
	return nil
}

const iptcMaxShortLength = 0x7FFF

// writeIptcLength writes the IIM4 dataset length field: a 2-byte
// big-endian short form for values up to 32767 bytes, else the extended
// form (high bit set on a 2-byte "byte count of the length field"
// (always 4 here) followed by a 4-byte big-endian real length).
func writeIptcLength(w *bytes.Buffer, n int) error {
	if n <= iptcMaxShortLength {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		w.Write(b[:])
		return nil
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], 0x8000|4)
	w.Write(b[:])
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(n))
	w.Write(lb[:])
	return nil
}

// EncodeIptcFromContainer renders a MetadataContainer of IPTC Datum
// values back to a canonical IIM4 byte stream, resolving each Datum's
// (Group, Tag) back to a (record, dataset) pair via the same catalog
// metadecoder_iptc.go's decode path populates, and expanding a
// multi-value repeatable field (stored as a []string Value, mirroring
// TagInfo's convention in metadecoder_iptc.go's handlestringSlices) into one
// iptcDatum per item.
func EncodeIptcFromContainer(c *MetadataContainer) ([]byte, error) {
	enc := newIptcEncoder()
	for _, d := range c.All() {
		record, dataset, ok := lookupIptcRecordDataset(d.Group, d.Tag)
		if !ok {
			continue
		}
		switch v := d.Value.Any().(type) {
		case []string:
			for _, s := range v {
				if err := enc.Add(record, dataset, []byte(s)); err != nil {
					return nil, err
				}
			}
		default:
			if err := enc.Add(record, dataset, []byte(d.Value.ToString())); err != nil {
				return nil, err
			}
		}
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lookupIptcRecordDataset resolves a (Group, Tag) Datum key back to its
// (record, dataset) numeric pair using metadecoder_iptc.go's
// getIptcRecordNumber/getIptcDatasetNumber reverse-lookup tables, the
// write-side mirror of decodeRecord's forward getIptcRecordName/
// getIptcRecordFieldDef calls.
func lookupIptcRecordDataset(recordName, tag string) (uint8, uint8, bool) {
	record, ok := getIptcRecordNumber(recordName)
	if !ok {
		return 0, 0, false
	}
	dataset, ok := getIptcDatasetNumber(record, tag)
	if !ok {
		return 0, 0, false
	}
	return record, dataset, true
}
