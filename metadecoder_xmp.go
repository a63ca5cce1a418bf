// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var xmpSkipNamespaces = map[string]bool{
	"xmlns": true,
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": true,
	"http://purl.org/dc/elements/1.1/":            true,
}

type rdf struct {
	XMLName      xml.Name
	Descriptions []rdfDescription `xml:"Description"`
}

// Note: We currently only handle a subset of XMP tags,
// but a very common subset.
type rdfDescription struct {
	XMLName   xml.Name
	Attrs     []xml.Attr `xml:",any,attr"`
	Creator   seqList    `xml:"creator"`
	Publisher bagList    `xml:"publisher"`
	Subject   bagList    `xml:"subject"`
	Rights    altList    `xml:"rights"`

	// GPS and other simple child elements from exif namespace.
	GPSLatitude    string `xml:"GPSLatitude"`
	GPSLongitude   string `xml:"GPSLongitude"`
	GPSAltitude    string `xml:"GPSAltitude"`
	GPSAltitudeRef string `xml:"GPSAltitudeRef"`
}

type altList struct {
	XMLName xml.Name
	Alt     struct {
		Items []string `xml:"li"`
	} `xml:"Alt"`
}

type seqList struct {
	XMLName xml.Name
	Seq     struct {
		Items []string `xml:"li"`
	} `xml:"Seq"`
}

type bagList struct {
	XMLName xml.Name
	Bag     struct {
		Items []string `xml:"li"`
	} `xml:"Bag"`
}

type xmpmeta struct {
	XMLName xml.Name
	RDF     rdf `xml:"RDF"`
}

func decodeXMP(r io.Reader, opts Options) error {
	if opts.HandleXMP != nil {
		if err := opts.HandleXMP(r); err != nil {
			return err
		}
		// Read one more byte to make sure we're at EOF.
		var b [1]byte
		if _, err := r.Read(b[:]); err != io.EOF {
			return errors.New("expected EOF after XMP")
		}
		return nil
	}

	var meta xmpmeta
	if err := xml.NewDecoder(r).Decode(&meta); err != nil {
		return newInvalidFormatError(fmt.Errorf("decoding XMP: %w", err))
	}

	// Process all rdf:Description elements.
	for _, desc := range meta.RDF.Descriptions {
		// Process attributes.
		for _, attr := range desc.Attrs {
			if xmpSkipNamespaces[attr.Name.Space] {
				continue
			}

			tagInfo := TagInfo{
				Source:    XMP,
				Tag:       firstUpper(attr.Name.Local),
				Namespace: attr.Name.Space,
				Value:     attr.Value,
			}

			if !opts.ShouldHandleTag(tagInfo) {
				continue
			}

			if err := opts.HandleTag(tagInfo); err != nil {
				return err
			}
		}

		// Process known child element lists.
		if err := processChildElements(desc.Creator.XMLName, desc.Creator.Seq.Items, opts); err != nil {
			return err
		}

		if err := processChildElements(desc.Publisher.XMLName, desc.Publisher.Bag.Items, opts); err != nil {
			return err
		}

		if err := processChildElements(desc.Subject.XMLName, desc.Subject.Bag.Items, opts); err != nil {
			return err
		}

		if err := processChildElements(desc.Rights.XMLName, desc.Rights.Alt.Items, opts); err != nil {
			return err
		}

		// Process GPS child elements.
		// GPS coordinates in XMP are typically in DMS format like "26,34.951N"
		// which needs to be converted to decimal degrees.
		if desc.GPSLatitude != "" {
			if lat, err := parseXMPGPSCoordinate(desc.GPSLatitude); err == nil {
				if err := processGPSTag("GPSLatitude", lat, opts); err != nil {
					return err
				}
			}
		}

		if desc.GPSLongitude != "" {
			if long, err := parseXMPGPSCoordinate(desc.GPSLongitude); err == nil {
				if err := processGPSTag("GPSLongitude", long, opts); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func processChildElements(name xml.Name, items []string, opts Options) error {
	if len(items) == 0 {
		return nil
	}
	if name.Local == "" {
		return nil
	}
	var v any

	// This is how ExifTool does it:
	if len(items) == 1 {
		v = items[0]
	} else {
		v = items
	}

	tagInfo := TagInfo{
		Source:    XMP,
		Tag:       firstUpper(name.Local),
		Namespace: name.Space,
		Value:     v,
	}
	if !opts.ShouldHandleTag(tagInfo) {
		return nil
	}
	return opts.HandleTag(tagInfo)
}

func firstUpper(s string) string {
	if s == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

// firstLower is firstUpper's inverse, needed by EncodeXMPPacket to turn
// a Datum.Tag ("Creator") back into the lowercase RDF element/attribute
// local name ("creator") decodeXMP derived it from.
func firstLower(s string) string {
	if s == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}

// xmpSeqTags and xmpBagTags/xmpAltTags name the Datum tags that
// decodeXMP reads out of rdf:Seq/rdf:Bag/rdf:Alt list containers
// (Creator, Publisher/Subject, Rights respectively); EncodeXMPPacket
// routes a matching Datum into the same list shape instead of a plain
// attribute so a decode-then-encode-then-decode round trip reproduces
// the list structure rather than flattening it to a single string.
var xmpSeqTags = map[string]bool{"Creator": true}

var xmpBagTags = map[string]bool{"Publisher": true, "Subject": true}

var xmpAltTags = map[string]bool{"Rights": true}

const (
	rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	dcNamespace  = "http://purl.org/dc/elements/1.1/"
)

// EncodeXMPPacket renders a MetadataContainer's XMP family into a raw
// `<?xpacket?>`-wrapped RDF/XML packet, using the same rdf/rdfDescription
// wire types decodeXMP populates from a read packet, so the two
// directions share one schema instead of the encoder inventing its own.
// The result can be passed as the xmpPacket argument of
// EncodeJPEGMetadata, whose appendXMPSegment wraps it in an APP1 segment.
func EncodeXMPPacket(c *MetadataContainer) ([]byte, error) {
	desc := rdfDescription{XMLName: xml.Name{Space: rdfNamespace, Local: "Description"}}
	desc.Creator.XMLName = xml.Name{Space: dcNamespace, Local: "creator"}
	desc.Publisher.XMLName = xml.Name{Space: dcNamespace, Local: "publisher"}
	desc.Subject.XMLName = xml.Name{Space: dcNamespace, Local: "subject"}
	desc.Rights.XMLName = xml.Name{Space: dcNamespace, Local: "rights"}

	for _, d := range c.All() {
		switch {
		case xmpSeqTags[d.Tag]:
			desc.Creator.Seq.Items = toStringSlice(d.Value)
		case xmpBagTags[d.Tag] && d.Tag == "Publisher":
			desc.Publisher.Bag.Items = toStringSlice(d.Value)
		case xmpBagTags[d.Tag] && d.Tag == "Subject":
			desc.Subject.Bag.Items = toStringSlice(d.Value)
		case xmpAltTags[d.Tag]:
			desc.Rights.Alt.Items = toStringSlice(d.Value)
		case d.Tag == "GPSLatitude":
			desc.GPSLatitude = d.Value.ToString()
		case d.Tag == "GPSLongitude":
			desc.GPSLongitude = d.Value.ToString()
		case d.Tag == "GPSAltitude":
			desc.GPSAltitude = d.Value.ToString()
		case d.Tag == "GPSAltitudeRef":
			desc.GPSAltitudeRef = d.Value.ToString()
		default:
			desc.Attrs = append(desc.Attrs, xml.Attr{
				Name:  xml.Name{Space: d.Group, Local: firstLower(d.Tag)},
				Value: d.Value.ToString(),
			})
		}
	}

	meta := xmpmeta{
		XMLName: xml.Name{Space: "adobe:ns:meta/", Local: "xmpmeta"},
		RDF: rdf{
			XMLName:      xml.Name{Space: rdfNamespace, Local: "RDF"},
			Descriptions: []rdfDescription{desc},
		},
	}

	body, err := xml.Marshal(meta)
	if err != nil {
		return nil, newErrorWrap(KindInvalidXMP, err)
	}

	var buf strings.Builder
	buf.WriteString(`<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>`)
	buf.Write(body)
	buf.WriteString(`<?xpacket end="w"?>`)
	return []byte(buf.String()), nil
}

// toStringSlice normalizes a Value holding either a single string or a
// []string (the two shapes processChildElements and metadecoder_iptc.go's
// handlestringSlices produce) into a []string for the RDF
// Seq/Bag/Alt containers above.
func toStringSlice(v Value) []string {
	switch raw := v.Any().(type) {
	case []string:
		return raw
	default:
		s := v.ToString()
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// processGPSTag creates a TagInfo for a GPS coordinate and passes it to the handler.
func processGPSTag(tag string, value float64, opts Options) error {
	tagInfo := TagInfo{
		Source:    XMP,
		Tag:       tag,
		Namespace: "http://ns.adobe.com/exif/1.0/",
		Value:     value,
	}
	if !opts.ShouldHandleTag(tagInfo) {
		return nil
	}
	return opts.HandleTag(tagInfo)
}

// parseXMPGPSCoordinate parses GPS coordinates from XMP format.
// XMP GPS coordinates can be in several formats:
// - DMS with direction: "26,34.951N" or "80,12.014W"
// - Decimal with direction: "26.5825N" or "80.2002W"
// - Pure decimal: "26.5825" or "-80.2002"
func parseXMPGPSCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}

	// Check for direction suffix (N, S, E, W)
	var negative bool
	lastChar := s[len(s)-1]
	switch lastChar {
	case 'S', 's', 'W', 'w':
		negative = true
		s = s[:len(s)-1]
	case 'N', 'n', 'E', 'e':
		s = s[:len(s)-1]
	}

	var degrees float64

	// Check if it's in DMS format (contains comma)
	if idx := strings.Index(s, ","); idx != -1 {
		// Format: "degrees,minutes" e.g., "26,34.951"
		degStr := s[:idx]
		minStr := s[idx+1:]

		deg, err := strconv.ParseFloat(degStr, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing degrees: %w", err)
		}

		min, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing minutes: %w", err)
		}

		degrees = deg + min/60.0
	} else {
		// Pure decimal format
		var err error
		degrees, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing decimal: %w", err)
		}
	}

	if negative {
		degrees = -degrees
	}

	return degrees, nil
}
