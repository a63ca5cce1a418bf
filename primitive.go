// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/binary"
	"math"
)

// exifType mirrors the TIFF/Exif type tag values used throughout
// metadecoder_exif.go (1=byte .. 12=double); primitive.go supplies the
// symmetrical write_T side the read-only teacher never needed.
const (
	ptByte      = 1
	ptAscii     = 2
	ptShort     = 3
	ptLong      = 4
	ptRational  = 5
	ptSByte     = 6
	ptUndefined = 7
	ptSShort    = 8
	ptSLong     = 9
	ptSRational = 10
	ptFloat     = 11
	ptDouble    = 12
	// BigTIFF-only types.
	ptLong8  = 16
	ptSLong8 = 17
	ptIFD8   = 18
)

// primitiveTypeSize mirrors exifTypeSize in metadecoder_exif.go,
// extended with the three BigTIFF 8-byte types.
var primitiveTypeSize = map[uint16]uint32{
	ptByte:      1,
	ptAscii:     1,
	ptShort:     2,
	ptLong:      4,
	ptRational:  8,
	ptSByte:     1,
	ptUndefined: 1,
	ptSShort:    2,
	ptSLong:     4,
	ptSRational: 8,
	ptFloat:     4,
	ptDouble:    8,
	ptLong8:     8,
	ptSLong8:    8,
	ptIFD8:      8,
}

func writeUint16(b []byte, order binary.ByteOrder, v uint16) { order.PutUint16(b, v) }
func writeUint32(b []byte, order binary.ByteOrder, v uint32) { order.PutUint32(b, v) }
func writeUint64(b []byte, order binary.ByteOrder, v uint64) { order.PutUint64(b, v) }

func readUint16(b []byte, order binary.ByteOrder) uint16 { return order.Uint16(b) }
func readUint32(b []byte, order binary.ByteOrder) uint32 { return order.Uint32(b) }
func readUint64(b []byte, order binary.ByteOrder) uint64 { return order.Uint64(b) }

// writeRationalU32 encodes an unsigned rational as two uint32s, denominator
// first normalized to be non-zero by the caller (Rat never constructs a
// zero denominator, see helpers.go's NewRat).
func writeRationalU32(b []byte, order binary.ByteOrder, num, den uint32) {
	order.PutUint32(b[0:4], num)
	order.PutUint32(b[4:8], den)
}

func writeRationalI32(b []byte, order binary.ByteOrder, num, den int32) {
	order.PutUint32(b[0:4], uint32(num))
	order.PutUint32(b[4:8], uint32(den))
}

func readRationalU32(b []byte, order binary.ByteOrder) (num, den uint32) {
	return order.Uint32(b[0:4]), order.Uint32(b[4:8])
}

func readRationalI32(b []byte, order binary.ByteOrder) (num, den int32) {
	return int32(order.Uint32(b[0:4])), int32(order.Uint32(b[4:8]))
}

func writeFloat32(b []byte, order binary.ByteOrder, v float32) {
	order.PutUint32(b, math.Float32bits(v))
}

func writeFloat64(b []byte, order binary.ByteOrder, v float64) {
	order.PutUint64(b, math.Float64bits(v))
}

func readFloat32(b []byte, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(b))
}

func readFloat64(b []byte, order binary.ByteOrder) float64 {
	return math.Float64frombits(order.Uint64(b))
}

// isInlineSize reports whether a value of the given byte length fits in
// the TIFF entry's value-or-offset slot, 4 bytes for classic TIFF, 8 for
// BigTIFF (spec §4.5 / §8 boundary behavior: count*size == slot is inline,
// never dereferenced as an offset).
func isInlineSize(byteLen uint64, bigTIFF bool) bool {
	if bigTIFF {
		return byteLen <= 8
	}
	return byteLen <= 4
}
