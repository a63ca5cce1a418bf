// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/binary"
	"io"
	"sort"
)

// ifdEntry is one in-memory TIFF/Exif directory entry, the write-side
// analogue of the inline decode metadecoder_exif.go's decodeTag performs
// on the fly. Grounded on jrm-1535-exif/exif.go's ifdd.values (a slice of
// serializer-implementing entries) but keyed by tag and carrying a Value
// instead of a type-specific Go struct per entry, matching this module's
// single tagged-union Value model (value.go).
type ifdEntry struct {
	Tag   uint16
	Type  uint16
	Count uint64
	Data  []byte // raw bytes of the value, already byte-order-encoded
}

// ifdTree is an in-memory, mutable TIFF directory tree: one ifd plus its
// named sub-IFDs (Exif, GPS, Iop, per-vendor maker note) and an optional
// linked next-IFD (IFD1, the thumbnail directory). Grounded on
// jrm-1535-exif/exif.go's ifdd parent-pointer tree, generalized with a
// name-keyed map of children instead of a fixed IfdId enum so BMFF/RAW
// SubIFDs (tag 0x014a) of arbitrary count are representable too.
type ifdTree struct {
	Name     string
	Entries  []*ifdEntry
	Children map[string]*ifdTree // keyed by child namespace, e.g. "ExifIFDP"
	Next     *ifdTree             // IFD1 off of IFD0, nil otherwise
}

func newIFDTree(name string) *ifdTree {
	return &ifdTree{Name: name, Children: map[string]*ifdTree{}}
}

func (t *ifdTree) sortEntries() {
	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Tag < t.Entries[j].Tag })
}

// set adds or replaces the entry for tag, keeping entries sorted (spec §8
// invariant: "entries appear in ascending tag order after a write").
func (t *ifdTree) set(e *ifdEntry) {
	for i, existing := range t.Entries {
		if existing.Tag == e.Tag {
			t.Entries[i] = e
			return
		}
	}
	t.Entries = append(t.Entries, e)
	t.sortEntries()
}

// remove deletes the entry for tag, reporting whether it existed.
func (t *ifdTree) remove(tag uint16) bool {
	for i, e := range t.Entries {
		if e.Tag == tag {
			t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// containerToIFDTree flattens a MetadataContainer's Exif datums into
// the ifdTree form the writer below expects, grouping entries by
// Datum.Group: Group "" or "Image" goes to the root, any other group
// becomes a named child. Only children named like exifIFDPointers'
// sub-IFDs ("ExifIFDP", "GPSInfoIFD", "InteroperabilityIFD") get a
// pointer entry and are written by writeTree; a child under any other
// name (such as the "IFD0/..." groups a decode reports) is not written.
func containerToIFDTree(c *MetadataContainer, order binary.ByteOrder) *ifdTree {
	root := newIFDTree("IFD0")
	for _, d := range c.All() {
		entry := datumToIFDEntry(d, order)
		if entry == nil {
			continue
		}
		dest := root
		if d.Group != "" && d.Group != "Image" {
			child, ok := root.Children[d.Group]
			if !ok {
				child = newIFDTree(d.Group)
				root.Children[d.Group] = child
			}
			dest = child
		}
		dest.set(entry)
	}

	// Every sub-IFD present needs a pointer entry in root pointing at it
	// (tag 0x8769/0x8825/0xa005, ifdChildPointerTag below), the write-side
	// mirror of decodeTag's exifIFDPointers table it descends through.
	// Adding the placeholder here, before writeTiffChain ever runs,
	// means sizeOfTree sees the same entry count writeTree will.
	offsetWidth := 4
	for name := range root.Children {
		tag, ok := ifdChildPointerTag[name]
		if !ok {
			continue
		}
		root.set(&ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedLong4), Count: 1, Data: make([]byte, offsetWidth)})
	}
	return root
}

// ifdChildPointerTag reverses metadecoder_exif.go's exifIFDPointers
// (tag number -> child namespace name) so the writer can go the other
// way: given a child name ("GPSInfoIFD"), find the tag number of the
// pointer entry that must reference it.
var ifdChildPointerTag = func() map[string]uint16 {
	m := make(map[string]uint16, len(exifIFDPointers))
	for tag, name := range exifIFDPointers {
		m[name] = tag
	}
	return m
}()

// datumToIFDEntry serializes a Datum's Value to the raw, already
// byte-order-encoded form ifdEntry.Data holds, selecting the TIFF type
// code from Value.Kind (value.go). The type codes themselves are
// metadecoder_exif.go's own exifType constants (exifTypeASCIIString1,
// exifTypeUnsignedRat8, ...) rather than a second, independently
// maintained copy of the TIFF type table: the writer and the reader
// that has to make sense of what it wrote must agree on the mapping.
// Returns nil for datums with no TagNumber (an Exif-family Datum built
// by hand without going through lookupExifTagNumber first) or a Kind
// the writer doesn't know how to serialize.
func datumToIFDEntry(d Datum, order binary.ByteOrder) *ifdEntry {
	if d.TagNumber == 0 {
		if tag, ok := lookupExifTagNumber(d.Tag); ok {
			d.TagNumber = uint32(tag)
		} else {
			return nil
		}
	}
	tag := uint16(d.TagNumber)
	v := d.Value
	switch v.Kind {
	case ValueKindAscii:
		s := v.ToString()
		data := append([]byte(s), 0)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeASCIIString1), Count: uint64(len(data)), Data: data}
	case ValueKindByte:
		b, _ := v.Any().(uint8)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedByte1), Count: 1, Data: []byte{b}}
	case ValueKindShort:
		if vals, ok := v.Any().([]uint16); ok {
			data := make([]byte, len(vals)*2)
			for i, x := range vals {
				writeUint16(data[i*2:], order, x)
			}
			return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedShort2), Count: uint64(len(vals)), Data: data}
		}
		x, _ := v.Any().(uint16)
		data := make([]byte, 2)
		writeUint16(data, order, x)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedShort2), Count: 1, Data: data}
	case ValueKindLong:
		if vals, ok := v.Any().([]uint32); ok {
			data := make([]byte, len(vals)*4)
			for i, x := range vals {
				writeUint32(data[i*4:], order, x)
			}
			return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedLong4), Count: uint64(len(vals)), Data: data}
		}
		x, _ := v.Any().(uint32)
		data := make([]byte, 4)
		writeUint32(data, order, x)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedLong4), Count: 1, Data: data}
	case ValueKindRational:
		r, ok := v.Any().(Rat[uint32])
		if !ok {
			return nil
		}
		data := make([]byte, 8)
		writeRationalU32(data, order, r.Num(), r.Den())
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeUnsignedRat8), Count: 1, Data: data}
	case ValueKindSRational:
		r, ok := v.Any().(Rat[int32])
		if !ok {
			return nil
		}
		data := make([]byte, 8)
		writeRationalI32(data, order, r.Num(), r.Den())
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeSignedRat8), Count: 1, Data: data}
	case ValueKindSLong:
		x, _ := v.Any().(int32)
		data := make([]byte, 4)
		writeUint32(data, order, uint32(x))
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeSignedLong4), Count: 1, Data: data}
	case ValueKindFloat:
		x, _ := v.Any().(float32)
		data := make([]byte, 4)
		writeFloat32(data, order, x)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeSignedFloat4), Count: 1, Data: data}
	case ValueKindDouble:
		x, _ := v.Any().(float64)
		data := make([]byte, 8)
		writeFloat64(data, order, x)
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeSignedDouble8), Count: 1, Data: data}
	case ValueKindUndefined:
		b, ok := v.Any().([]byte)
		if !ok {
			return nil
		}
		return &ifdEntry{Tag: tag, Type: uint16(exifTypeUndef1), Count: uint64(len(b)), Data: b}
	default:
		return nil
	}
}

// tiffWriter serializes an ifdTree back to the classic-TIFF or BigTIFF
// wire format. Two passes, exactly like jrm-1535-exif/serialize.go's
// serializeEntries (fixed-size directory) then serializeDataArea
// (variable-size payloads written after all directories, each IFD's data
// area immediately following its own directory+next-pointer, matching the
// non-intrusive layout exiv2's TiffImage writes when nothing grew).
type tiffWriter struct {
	order   binary.ByteOrder
	bigTIFF bool
	visited map[uint64]struct{} // guards cycles in the sub-IFD descent
}

func newTiffWriter(order binary.ByteOrder, bigTIFF bool) *tiffWriter {
	return &tiffWriter{order: order, bigTIFF: bigTIFF, visited: map[uint64]struct{}{}}
}

const maxIFDEntries = 500

// entrySlotSize is the fixed width of one classic-TIFF directory entry
// (tag+type+count+value/offset); BigTIFF doubles the count and offset
// fields, per spec §9 treating BigTIFF as first-class.
func (w *tiffWriter) entrySlotSize() uint32 {
	if w.bigTIFF {
		return 20
	}
	return 12
}

func (w *tiffWriter) countWidth() int {
	if w.bigTIFF {
		return 8
	}
	return 4
}

func (w *tiffWriter) offsetWidth() int {
	if w.bigTIFF {
		return 8
	}
	return 4
}

// writeHeader writes the 8-byte (classic) / 16-byte (BigTIFF) TIFF file
// header: byte-order mark, magic (42 classic, 43 BigTIFF plus the two
// reserved words), and the IFD0 offset.
func (w *tiffWriter) writeHeader(out io.Writer, ifd0Offset uint64) error {
	var bom uint16
	if w.order == binary.BigEndian {
		bom = byteOrderBigEndian
	} else {
		bom = byteOrderLittleEndian
	}
	b2 := make([]byte, 2)
	w.order.PutUint16(b2, bom)
	if _, err := out.Write(b2); err != nil {
		return newErrorWrap(KindWriteFailed, err)
	}
	if !w.bigTIFF {
		w.order.PutUint16(b2, 42)
		if _, err := out.Write(b2); err != nil {
			return newErrorWrap(KindWriteFailed, err)
		}
		b4 := make([]byte, 4)
		w.order.PutUint32(b4, uint32(ifd0Offset))
		_, err := out.Write(b4)
		return err
	}
	w.order.PutUint16(b2, 43)
	if _, err := out.Write(b2); err != nil {
		return newErrorWrap(KindWriteFailed, err)
	}
	b8 := make([]byte, 8)
	w.order.PutUint16(b8, 8) // offset-byte-size, always 8
	if _, err := out.Write(b8[:2]); err != nil {
		return newErrorWrap(KindWriteFailed, err)
	}
	if _, err := out.Write([]byte{0, 0}); err != nil { // reserved
		return newErrorWrap(KindWriteFailed, err)
	}
	w.order.PutUint64(b8, ifd0Offset)
	_, err := out.Write(b8)
	return err
}

// writeTree serializes the tree starting at the given file offset,
// returning the total number of bytes written. Children (sub-IFDs) are
// written into the parent's data area at the point their pointer entry
// would otherwise hold an inline offset, exactly like
// jrm-1535-exif/serialize.go's two-phase entries-then-data-area scheme,
// just recursive to cover nested Exif/GPS/Iop/maker-note IFDs.
func (w *tiffWriter) writeTree(out io.Writer, t *ifdTree, origin, nextOffset uint64) (uint64, error) {
	if len(t.Entries) > maxIFDEntries {
		return 0, newError(KindTooManyIfdEntries, len(t.Entries))
	}
	if _, seen := w.visited[origin]; seen {
		return 0, newError(KindCorruptedMetadata, "cyclic ifd offset", origin)
	}
	w.visited[origin] = struct{}{}

	numEntries := uint64(len(t.Entries))
	dirSize := uint64(w.countWidth()) + numEntries*uint64(w.entrySlotSize()) + uint64(w.offsetWidth())
	dataAreaStart := origin + dirSize

	// Fixed-size directory, collecting any values that overflow the
	// inline slot into the data area (and recording their future offsets
	// up front, two-pass like the teacher's setDataAreaStart).
	type pending struct {
		entry  *ifdEntry
		offset uint64
	}
	var overflow []pending
	cursor := dataAreaStart
	for _, e := range t.Entries {
		if !isInlineSize(uint64(len(e.Data)), w.bigTIFF) {
			overflow = append(overflow, pending{entry: e, offset: cursor})
			sz := uint64(len(e.Data))
			if sz%2 == 1 {
				sz++ // align data area entries to 2-byte boundaries
			}
			cursor += sz
		}
	}

	// Sub-IFDs (Exif/GPS/Interop) are laid out after the overflow data,
	// each at the offset its placeholder pointer entry (see
	// containerToIFDTree/ifdChildPointerTag) will be rewritten to carry.
	type pendingChild struct {
		tag    uint16
		tree   *ifdTree
		offset uint64
	}
	var children []pendingChild
	var childNames []string
	for name := range t.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		tag, ok := ifdChildPointerTag[name]
		if !ok {
			continue
		}
		size := w.sizeOfTree(t.Children[name])
		children = append(children, pendingChild{tag: tag, tree: t.Children[name], offset: cursor})
		if size%2 == 1 {
			size++
		}
		cursor += size
	}
	for _, child := range children {
		for _, e := range t.Entries {
			if e.Tag == child.tag {
				w.order.PutUint32(e.Data, uint32(child.offset))
			}
		}
	}

	if err := w.writeCount(out, numEntries); err != nil {
		return 0, err
	}
	overflowIdx := 0
	for _, e := range t.Entries {
		if err := w.writeEntryHeader(out, e); err != nil {
			return 0, err
		}
		if isInlineSize(uint64(len(e.Data)), w.bigTIFF) {
			if err := w.writePadded(out, e.Data, w.offsetWidth()); err != nil {
				return 0, err
			}
		} else {
			if err := w.writeOffset(out, overflow[overflowIdx].offset); err != nil {
				return 0, err
			}
			overflowIdx++
		}
	}

	if err := w.writeOffset(out, nextOffset); err != nil {
		return 0, err
	}

	// Data area: overflow entry values first, then each sub-IFD, same
	// order the offsets above were computed in.
	for _, p := range overflow {
		if err := w.writePadded(out, p.entry.Data, len(p.entry.Data)); err != nil {
			return 0, err
		}
	}
	for _, child := range children {
		size, err := w.writeTree(out, child.tree, child.offset, 0)
		if err != nil {
			return 0, err
		}
		if size%2 == 1 {
			if _, err := out.Write([]byte{0}); err != nil {
				return 0, err
			}
		}
	}

	return cursor - origin, nil
}

// sizeOfTree computes the serialized byte length of t without writing
// anything, so writeTiffChain can learn IFD0's size before it needs to know
// where IFD1 starts (the Next pointer it must embed inline).
func (w *tiffWriter) sizeOfTree(t *ifdTree) uint64 {
	numEntries := uint64(len(t.Entries))
	size := uint64(w.countWidth()) + numEntries*uint64(w.entrySlotSize()) + uint64(w.offsetWidth())
	for _, e := range t.Entries {
		if !isInlineSize(uint64(len(e.Data)), w.bigTIFF) {
			sz := uint64(len(e.Data))
			if sz%2 == 1 {
				sz++
			}
			size += sz
		}
	}
	for _, child := range t.Children {
		childSize := w.sizeOfTree(child)
		if childSize%2 == 1 {
			childSize++
		}
		size += childSize
	}
	return size
}

// writeTiffChain serializes ifd0 and, if present, its Next (IFD1) as a
// full TIFF/Exif byte stream: header, IFD0 directory+data area, then
// IFD1 directory+data area. IFD0's next-pointer is resolved up front via
// sizeOfTree, avoiding a measure-then-rewrite pass since entry sizes are
// fully known ahead of time (unlike a general-purpose serializer, this
// module never needs a variable-width encoding whose own size depends on
// its value).
func writeTiffChain(out io.Writer, order binary.ByteOrder, bigTIFF bool, ifd0 *ifdTree) (int64, error) {
	headerSize := uint64(8)
	if bigTIFF {
		headerSize = 16
	}

	w := newTiffWriter(order, bigTIFF)
	if err := w.writeHeader(out, headerSize); err != nil {
		return 0, err
	}

	var ifd1Offset uint64
	if ifd0.Next != nil {
		ifd1Offset = headerSize + w.sizeOfTree(ifd0)
	}

	ifd0Size, err := w.writeTree(out, ifd0, headerSize, ifd1Offset)
	if err != nil {
		return 0, err
	}
	total := int64(headerSize) + int64(ifd0Size)

	if ifd0.Next != nil {
		ifd1Size, err := w.writeTree(out, ifd0.Next, ifd1Offset, 0)
		if err != nil {
			return 0, err
		}
		total += int64(ifd1Size)
	}

	return total, nil
}

func (w *tiffWriter) writeCount(out io.Writer, n uint64) error {
	if w.bigTIFF {
		b := make([]byte, 8)
		w.order.PutUint64(b, n)
		_, err := out.Write(b)
		return err
	}
	b := make([]byte, 2)
	w.order.PutUint16(b, uint16(n))
	_, err := out.Write(b)
	return err
}

func (w *tiffWriter) writeOffset(out io.Writer, off uint64) error {
	if w.bigTIFF {
		b := make([]byte, 8)
		w.order.PutUint64(b, off)
		_, err := out.Write(b)
		return err
	}
	b := make([]byte, 4)
	w.order.PutUint32(b, uint32(off))
	_, err := out.Write(b)
	return err
}

func (w *tiffWriter) writeEntryHeader(out io.Writer, e *ifdEntry) error {
	b := make([]byte, 4)
	w.order.PutUint16(b[0:2], e.Tag)
	w.order.PutUint16(b[2:4], e.Type)
	if _, err := out.Write(b); err != nil {
		return err
	}
	return w.writeCount(out, e.Count)
}

func (w *tiffWriter) writePadded(out io.Writer, data []byte, width int) error {
	if _, err := out.Write(data); err != nil {
		return err
	}
	if pad := width - len(data); pad > 0 {
		_, err := out.Write(make([]byte, pad))
		return err
	}
	if len(data)%2 == 1 && width == len(data) {
		// Data-area entries (width == len(data)) still need 2-byte
		// alignment for the next entry, per TIFF6 §2.
		_, err := out.Write([]byte{0})
		return err
	}
	return nil
}
