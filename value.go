// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"fmt"
	"strings"
)

// ValueKind classifies the dynamic type carried by a Value, mirroring the
// primitive set in primitive.go plus the higher-level variants exiv2's
// value.hpp layers on top (comment, date, time, lang-alt).
type ValueKind int

const (
	ValueKindInvalid ValueKind = iota
	ValueKindByte
	ValueKindAscii
	ValueKindShort
	ValueKindLong
	ValueKindRational
	ValueKindSByte
	ValueKindUndefined
	ValueKindSShort
	ValueKindSLong
	ValueKindSRational
	ValueKindFloat
	ValueKindDouble
	ValueKindComment
	ValueKindDate
	ValueKindTime
	ValueKindLangAlt
	ValueKindXmpText
	ValueKindXmpArray
)

// Value is the tagged-union value carried by a Datum. Exactly one of the
// typed fields is meaningful, selected by Kind; this mirrors the teacher's
// use of `any` for TagInfo.Value but gives the write path (which the
// teacher never had) a closed type switch to serialize against.
type Value struct {
	Kind  ValueKind
	raw   any
	Count int
}

// NewValue wraps an arbitrary decoded Go value (string, []byte, uint32,
// Rat[uint32], etc.) the way TagInfo.Value already does, inferring Kind
// from the dynamic type.
func NewValue(v any) Value {
	kind := ValueKindUndefined
	switch v.(type) {
	case string:
		kind = ValueKindAscii
	case []byte:
		kind = ValueKindUndefined
	case uint8:
		kind = ValueKindByte
	case int8:
		kind = ValueKindSByte
	case uint16:
		kind = ValueKindShort
	case []uint16:
		kind = ValueKindShort
	case uint32:
		kind = ValueKindLong
	case []uint32:
		kind = ValueKindLong
	case int32:
		kind = ValueKindSLong
	case Rat[uint32]:
		kind = ValueKindRational
	case Rat[int32]:
		kind = ValueKindSRational
	case float32:
		kind = ValueKindFloat
	case float64:
		kind = ValueKindDouble
	}
	return Value{Kind: kind, raw: v}
}

// Any returns the underlying decoded value, the same shape TagInfo.Value
// already exposes to callers.
func (v Value) Any() any { return v.raw }

// ToString renders the value as a string; never fails (round-trip law
// in spec §8: Value(s).toString() == s for string variants).
func (v Value) ToString() string {
	if s, ok := v.raw.(string); ok {
		return s
	}
	return toString(v.raw)
}

// ToRational converts the value to a rational; integers convert to
// (int, 1) per spec §8's testable property.
func (v Value) ToRational() (Rat[int32], bool) {
	switch t := v.raw.(type) {
	case Rat[int32]:
		return t, true
	case Rat[uint32]:
		r, err := NewRat(int32(t.Num()), int32(t.Den()))
		return r, err == nil
	case int32:
		r, err := NewRat(t, int32(1))
		return r, err == nil
	case int:
		r, err := NewRat(int32(t), int32(1))
		return r, err == nil
	case uint32:
		r, err := NewRat(int32(t), int32(1))
		return r, err == nil
	default:
		return nil, false
	}
}

// CommentValue models Exif.Photo.UserComment: a charset-tag prefix
// (ASCII/JIS/UNICODE/UNDEFINED) followed by the comment bytes, matching
// helpers.go's convertUserComment logic but as a first-class type instead
// of a bare string, per SPEC_FULL's "supplemented features".
type CommentValue struct {
	Charset string // "ASCII", "JIS", "UNICODE", "UNDEFINED", ""
	Text    string
}

func (c CommentValue) String() string { return c.Text }

// Encode renders the comment back to its 8-byte-charset-prefix + text wire
// form, the inverse of helpers.go's convertUserComment.
func (c CommentValue) Encode() []byte {
	var prefix string
	switch c.Charset {
	case "ASCII":
		prefix = "ASCII\x00\x00\x00"
	case "JIS":
		prefix = "JIS\x00\x00\x00\x00\x00"
	case "UNICODE":
		prefix = "UNICODE\x00"
	default:
		prefix = "\x00\x00\x00\x00\x00\x00\x00\x00"
	}
	return append([]byte(prefix), []byte(c.Text)...)
}

// DateValue models a CCYY:MM:DD (Exif) / CCYYMMDD (IPTC) date, keeping the
// originating layout so re-encoding is lossless.
type DateValue struct {
	Year, Month, Day int
	layoutHasColons  bool
}

func (d DateValue) String() string {
	if d.layoutHasColons {
		return fmt.Sprintf("%04d:%02d:%02d", d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// TimeValue models a HH:MM:SS[+-HH:MM] (Exif/IPTC) time-of-day.
type TimeValue struct {
	Hour, Minute, Second int
	TZOffset             string // e.g. "+01:00", "" if none
}

func (t TimeValue) String() string {
	s := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.TZOffset != "" {
		s += t.TZOffset
	}
	return s
}

// LangAltValue models an XMP rdf:Alt of xml:lang-tagged strings, the
// structured form metadecoder_xmp.go currently flattens into altList.
type LangAltValue struct {
	Default string
	ByLang  map[string]string // e.g. "x-default", "en-US"
}

func (l LangAltValue) String() string {
	if l.Default != "" {
		return l.Default
	}
	for _, v := range l.ByLang {
		return v
	}
	return ""
}

// XmpArrayValue models an XMP rdf:Bag/rdf:Seq ordered or unordered list,
// the structured form metadecoder_xmp.go's bagList/seqList decode into
// plain []string for the callback API; kept here as a typed counterpart
// for the in-memory Image aggregate (image.go).
type XmpArrayValue struct {
	Ordered bool // true for rdf:Seq, false for rdf:Bag
	Items   []string
}

func (a XmpArrayValue) String() string { return strings.Join(a.Items, "; ") }

// Datum is one metadata entry, keyed the way exiv2's Metadatum is:
// family (source), group (namespace/IFD/record name) and tag.
type Datum struct {
	Family    Source
	Group     string
	Tag       string
	TagNumber uint32 // Exif tag id / IPTC dataset number; 0 for XMP
	Value     Value
}

// Key renders the "family.group.tag" string form exiv2 keys use, e.g.
// "Exif.Image.Orientation" or "Iptc.Application2.Keywords".
func (d Datum) Key() string {
	return fmt.Sprintf("%s.%s.%s", d.Family.familyName(), d.Group, d.Tag)
}

func (s Source) familyName() string {
	switch s {
	case EXIF:
		return "Exif"
	case IPTC:
		return "Iptc"
	case XMP:
		return "Xmp"
	default:
		return "Unknown"
	}
}

// MetadataContainer holds the decoded Datum set for one Source, preserving
// the insertion order of keys and canonical (group,tag) lookup,
// generalizing the callback-oriented Tags type in imagemeta.go into an
// addressable, mutable collection the write path can diff against.
type MetadataContainer struct {
	family Source
	order  []string // keys in insertion order
	byKey  map[string]*Datum
}

func newMetadataContainer(family Source) *MetadataContainer {
	return &MetadataContainer{family: family, byKey: make(map[string]*Datum)}
}

// Add inserts d under its key, or replaces the datum already stored under
// that key while keeping its position. A repeatable field (IPTC keywords,
// etc.) holds all its items in one Datum as a []string Value, which
// iptc.go's EncodeIptcFromContainer expands into one dataset per item.
func (c *MetadataContainer) Add(d Datum) {
	k := d.Key()
	if _, exists := c.byKey[k]; !exists {
		c.order = append(c.order, k)
	}
	dd := d
	c.byKey[k] = &dd
}

// Get looks up a datum by its "family.group.tag" key.
func (c *MetadataContainer) Get(key string) (Datum, bool) {
	d, ok := c.byKey[key]
	if !ok {
		return Datum{}, false
	}
	return *d, true
}

// Remove deletes a datum by key, reporting whether it existed.
func (c *MetadataContainer) Remove(key string) bool {
	if _, ok := c.byKey[key]; !ok {
		return false
	}
	delete(c.byKey, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the data in insertion order.
func (c *MetadataContainer) All() []Datum {
	out := make([]Datum, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, *c.byKey[k])
	}
	return out
}

// Len reports the number of datums currently held.
func (c *MetadataContainer) Len() int { return len(c.order) }
