// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import "github.com/golang/geo/s2"

// GPSLatLng resolves img's Exif GPS tags (GPSLatitude/GPSLatitudeRef,
// GPSLongitude/GPSLongitudeRef in the "GPSInfoIFD" group, each
// coordinate a []Rat[uint32] triple: degrees, minutes, seconds) into an
// s2.LatLng, the Go equivalent of exiv2's ExifData::toGPSDegrees helpers
// but returning a structured, ready-to-use geo type instead of a float
// string. Returns ok=false if GPSLatitude or GPSLongitude is absent or
// not such a triple; a missing Ref tag counts as north/east. Coordinates
// stored as a decimal float64 (the form metadecoder_exif.go's decode
// produces for these tags) or under another group are not read.
func (img *Image) GPSLatLng() (s2.LatLng, bool) {
	lat, latOK := img.gpsCoordinate("GPSLatitude", "GPSLatitudeRef", "S")
	lng, lngOK := img.gpsCoordinate("GPSLongitude", "GPSLongitudeRef", "W")
	if !latOK || !lngOK {
		return s2.LatLng{}, false
	}
	return s2.LatLngFromDegrees(lat, lng), true
}

func (img *Image) gpsCoordinate(tag, refTag, negativeRef string) (float64, bool) {
	d, ok := img.Exif.Get(Datum{Family: EXIF, Group: "GPSInfoIFD", Tag: tag}.Key())
	if !ok {
		return 0, false
	}
	rats, ok := d.Value.Any().([]Rat[uint32])
	if !ok || len(rats) != 3 {
		return 0, false
	}
	degrees := ratToFloat(rats[0]) + ratToFloat(rats[1])/60 + ratToFloat(rats[2])/3600

	refD, ok := img.Exif.Get(Datum{Family: EXIF, Group: "GPSInfoIFD", Tag: refTag}.Key())
	if ok && refD.Value.ToString() == negativeRef {
		degrees = -degrees
	}
	return degrees, true
}

func ratToFloat(r Rat[uint32]) float64 {
	if r == nil || r.Den() == 0 {
		return 0
	}
	return float64(r.Num()) / float64(r.Den())
}
