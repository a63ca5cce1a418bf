// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/pretty"
)

// DebugJSON renders img's three metadata containers as pretty-printed
// JSON, modeled on jrm-1535-exif/exif.go's Desc.Format/FormatIfds text
// dumpers but JSON instead of a fixed-width table, using
// github.com/tidwall/pretty for the indentation pass instead of
// encoding/json's own (slower) indenter.
func (img *Image) DebugJSON() string {
	type datumJSON struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	type dump struct {
		Exif []datumJSON `json:"exif,omitempty"`
		Iptc []datumJSON `json:"iptc,omitempty"`
		Xmp  []datumJSON `json:"xmp,omitempty"`
	}

	toJSON := func(c *MetadataContainer) []datumJSON {
		if c == nil {
			return nil
		}
		var out []datumJSON
		for _, d := range c.All() {
			out = append(out, datumJSON{Key: d.Key(), Value: d.Value.ToString()})
		}
		return out
	}

	d := dump{
		Exif: toJSON(img.Exif),
		Iptc: toJSON(img.Iptc),
		Xmp:  toJSON(img.Xmp),
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	return string(pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: false}))
}
