package imageproc

import (
	"github.com/rwcarlsen/goexif/exif"

	"media-picker/internal/picker"
)

// Metadata is what ReadMetadata learns about an image.
type Metadata struct {
	Width       int
	Height      int
	Orientation int
	Latitude    float64
	Longitude   float64
	HasLocation bool
}

// ReadMetadata reads location, dimensions and orientation of the image at
// path. Dimensions come from EXIF when the tags hold a non-zero value and
// from the image header otherwise. Orientation defaults to
// OrientationNormal.
func ReadMetadata(path string) (Metadata, error) {
	md := Metadata{Orientation: OrientationNormal}

	x, err := readExif(path)
	if err != nil {
		return md, err
	}

	if x != nil {
		if lat, long, err := x.LatLong(); err == nil {
			md.Latitude, md.Longitude, md.HasLocation = lat, long, true
		}
		md.Width = firstInt(x, exif.ImageWidth, exif.PixelXDimension)
		md.Height = firstInt(x, exif.ImageLength, exif.PixelYDimension)
		md.Orientation = orientationOf(x)
	}

	if md.Width == 0 || md.Height == 0 {
		w, h, err := Dimensions(path)
		if err != nil {
			return md, err
		}
		md.Width, md.Height = w, h
	}
	return md, nil
}

func firstInt(x *exif.Exif, names ...exif.FieldName) int {
	for _, name := range names {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		if v, err := tag.Int(0); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

// extractMetadata fills the metadata fields of item. Failures leave the
// item as it was.
func (p *Processor) extractMetadata(item *picker.Item) picker.Result {
	md, err := ReadMetadata(item.ResolvedPath)
	if err != nil {
		return picker.Degraded(picker.StageMetadata,
			picker.Wrap(picker.ErrMetadata, picker.StageMetadata, item.ResolvedPath, err))
	}

	item.Width, item.Height = md.Width, md.Height
	item.Orientation = md.Orientation
	if md.HasLocation {
		item.Latitude, item.Longitude, item.HasLocation = md.Latitude, md.Longitude, true
	}
	return picker.Done(picker.StageMetadata)
}
