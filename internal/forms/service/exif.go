package service

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// photoMetadata is what we keep from a photo's EXIF block.
type photoMetadata struct {
	TakenAt *time.Time
	Lat     *float64
	Lon     *float64
}

// readPhotoMetadata extracts capture time and GPS position. Missing or
// corrupt EXIF yields an empty result, never an error.
func readPhotoMetadata(data []byte) photoMetadata {
	var meta photoMetadata
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}
	if taken, err := x.DateTime(); err == nil && !taken.IsZero() {
		t := taken.UTC()
		meta.TakenAt = &t
	}
	if lat, lon, err := x.LatLong(); err == nil {
		meta.Lat, meta.Lon = &lat, &lon
	}
	return meta
}
