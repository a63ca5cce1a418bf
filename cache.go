// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"github.com/tinylib/msgp/msgp"
)

// PreviewCache is a binary, msgp-encoded cache of previously extracted
// previews keyed by the source image's path, avoiding a second
// ExtractPreviews pass (which itself re-walks the Exif IFD1/XMP
// containers) within one process lifetime.
//
//go:generate msgp -tests=false
type PreviewCache struct {
	Entries map[string][]PreviewImage
}

// MarshalMsg and the other methods below are written in the shape
// `go:generate msgp` would itself produce (field-by-field MapHeader +
// typed writes via the msgp runtime package), hand-authored here
// because code generation isn't run in this environment.
func (z PreviewCache) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, uint32(len(z.Entries)))
	for key, previews := range z.Entries {
		o = msgp.AppendString(o, key)
		o = msgp.AppendArrayHeader(o, uint32(len(previews)))
		for _, p := range previews {
			o = appendPreviewImage(o, p)
		}
	}
	return o, nil
}

func appendPreviewImage(o []byte, p PreviewImage) []byte {
	o = msgp.AppendMapHeader(o, 5)
	o = msgp.AppendString(o, "source")
	o = msgp.AppendString(o, p.Source)
	o = msgp.AppendString(o, "data")
	o = msgp.AppendBytes(o, p.Data)
	o = msgp.AppendString(o, "width")
	o = msgp.AppendInt(o, p.Width)
	o = msgp.AppendString(o, "height")
	o = msgp.AppendInt(o, p.Height)
	o = msgp.AppendString(o, "mimeType")
	o = msgp.AppendString(o, p.MimeType)
	return o
}

func (z *PreviewCache) UnmarshalMsg(bts []byte) ([]byte, error) {
	mapCount, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	z.Entries = make(map[string][]PreviewImage, mapCount)
	for i := uint32(0); i < mapCount; i++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		var arrCount uint32
		arrCount, bts, err = msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return bts, err
		}
		previews := make([]PreviewImage, arrCount)
		for j := uint32(0); j < arrCount; j++ {
			previews[j], bts, err = readPreviewImage(bts)
			if err != nil {
				return bts, err
			}
		}
		z.Entries[key] = previews
	}
	return bts, nil
}

func readPreviewImage(bts []byte) (PreviewImage, []byte, error) {
	var p PreviewImage
	fieldCount, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return p, bts, err
	}
	for i := uint32(0); i < fieldCount; i++ {
		var field string
		field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return p, bts, err
		}
		switch field {
		case "source":
			p.Source, bts, err = msgp.ReadStringBytes(bts)
		case "data":
			p.Data, bts, err = msgp.ReadBytesBytes(bts, nil)
		case "width":
			p.Width, bts, err = msgp.ReadIntBytes(bts)
		case "height":
			p.Height, bts, err = msgp.ReadIntBytes(bts)
		case "mimeType":
			p.MimeType, bts, err = msgp.ReadStringBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return p, bts, err
		}
	}
	return p, bts, nil
}

// EncodePreviewCache and DecodePreviewCache wrap Marshal/UnmarshalMsg
// for callers that want a plain []byte rather than the msgp.Writer
// streaming API.
func EncodePreviewCache(c PreviewCache) ([]byte, error) {
	return c.MarshalMsg(nil)
}

func DecodePreviewCache(b []byte) (PreviewCache, error) {
	var c PreviewCache
	_, err := c.UnmarshalMsg(b)
	return c, err
}
