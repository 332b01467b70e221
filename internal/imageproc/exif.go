package imageproc

import (
	"errors"
	"fmt"
	"os"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"

	"media-picker/internal/filesystem"
)

// EXIF orientation values.
const (
	OrientationNormal    = 1
	OrientationRotate180 = 3
	OrientationRotate90  = 6
	OrientationRotate270 = 8
)

// readExif decodes the EXIF block of path. Files without EXIF return a nil
// *exif.Exif and no error.
func readExif(path string) (*exif.Exif, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer closeFile(f, path)

	x, err := exif.Decode(f)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, nil
	}
	return x, nil
}

// ReadOrientation returns the EXIF orientation of path, or OrientationNormal
// when the tag is absent or unreadable.
func ReadOrientation(path string) int {
	x, err := readExif(path)
	if err != nil || x == nil {
		return OrientationNormal
	}
	return orientationOf(x)
}

func orientationOf(x *exif.Exif) int {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return OrientationNormal
	}
	return o
}

// WriteOrientation sets the EXIF orientation tag of the JPEG at path. Every
// other tag already present is kept; a file without EXIF gets a new block
// holding just the orientation.
func WriteOrientation(path string, orientation int) error {
	if orientation < 1 || orientation > 8 {
		return fmt.Errorf("orientation %d out of range", orientation)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return errors.New("not a JPEG file")
	}

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return errors.New("not a JPEG file")
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return fmt.Errorf("read exif: %w", err)
	}
	if err := rootIb.SetStandardWithName("Orientation", []uint16{uint16(orientation)}); err != nil {
		return fmt.Errorf("set orientation: %w", err)
	}
	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("replace exif: %w", err)
	}

	tmp := path + ".tmp"
	f, err := filesystem.CreateWithRetry(tmp, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	if err := sl.Write(f); err != nil {
		closeFile(f, tmp)
		_ = os.Remove(tmp)
		return fmt.Errorf("write jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
