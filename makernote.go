// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import "bytes"

// makerNoteVendor is one entry in the vendor dispatch registry: a byte
// signature found at the start of the MakerNote tag's raw bytes, and the
// offset (relative to the TIFF header or the maker note itself,
// depending on vendor) at which the vendor's private IFD actually
// begins. Grounded on jrm-1535-exif/exif.go's `var makerNotes =
// [...]maker{{"Apple", tryAppleMakerNote}, {"Nikon", tryNikonMakerNote}}`
// registry, unified with the signature checks metadecoder_exif.go's
// MakerNote handling already implies via its tag dispatch (0x927c), and
// extended with Sony/Canon per spec's component table.
type makerNoteVendor struct {
	Name       string
	Signature  []byte
	HeaderSize int // bytes to skip before the vendor's TIFF-like IFD starts
	// RebasesOffsets reports whether the vendor's internal IFD offsets
	// are relative to the maker note's own start (true, e.g. Nikon's
	// "Nikon\x00" + TIFF header variant) rather than the original TIFF
	// header (false, the common case, e.g. Canon/Sony/Apple).
	RebasesOffsets bool
}

var makerNoteVendors = []makerNoteVendor{
	{Name: "Nikon", Signature: []byte("Nikon\x00"), HeaderSize: 18, RebasesOffsets: true},
	{Name: "Apple", Signature: []byte("Apple iOS\x00"), HeaderSize: 14, RebasesOffsets: false},
	{Name: "Canon", Signature: nil, HeaderSize: 0, RebasesOffsets: false}, // Canon has no signature; IFD starts immediately
	{Name: "Sony", Signature: []byte("SONY DSC \x00\x00\x00"), HeaderSize: 12, RebasesOffsets: false},
}

// detectMakerNoteVendor matches the raw MakerNote bytes against the
// registry, falling back to the signature-less "Canon" entry (which
// covers any vendor writing a bare nested IFD with no magic prefix,
// Canon being the most common of those in the wild).
func detectMakerNoteVendor(raw []byte) makerNoteVendor {
	for _, v := range makerNoteVendors {
		if len(v.Signature) == 0 {
			continue
		}
		if len(raw) >= len(v.Signature) && bytes.Equal(raw[:len(v.Signature)], v.Signature) {
			return v
		}
	}
	for _, v := range makerNoteVendors {
		if len(v.Signature) == 0 {
			return v
		}
	}
	return makerNoteVendor{Name: "Unknown"}
}
