package imageproc

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"media-picker/internal/logging"
	"media-picker/internal/picker"
)

// Thumbnail scale levels.
const (
	ScaleBig   = 1
	ScaleSmall = 2
)

// SampleSize returns the decode divisor for an image whose longest side is
// longest pixels, multiplied by the scale level.
func SampleSize(longest, level int) int {
	if level < 1 {
		level = 1
	}
	var n int
	switch {
	case longest > 3000:
		n = 6
	case longest > 2000:
		n = 5
	case longest > 1500:
		n = 4
	case longest > 1000:
		n = 3
	case longest > 400:
		n = 2
	default:
		n = 1
	}
	return n * level
}

// thumbnails writes the big thumbnail from the primary image and the small
// one from the big thumbnail. The big one becomes the item's primary path.
func (p *Processor) thumbnails(item *picker.Item) picker.Result {
	big, err := p.thumbnail(item.ResolvedPath, ScaleBig)
	if err != nil {
		return thumbnailFailed(item.ResolvedPath, err)
	}

	small, err := p.thumbnail(big, ScaleSmall)
	if err != nil {
		return thumbnailFailed(big, err)
	}

	item.SetResolvedPath(big)
	item.ThumbnailPath = small
	return picker.Done(picker.StageThumbnails)
}

func thumbnailFailed(path string, err error) picker.Result {
	logging.Error("imageproc: thumbnail of %s failed: %v", path, err)
	return picker.Fatal(picker.StageThumbnails,
		picker.Wrap(picker.ErrProcessing, picker.StageThumbnails, path, err))
}

// thumbnail writes a copy of src downscaled by SampleSize and rotated
// upright, and returns its path. When src cannot be decoded into a bitmap
// the returned path is src itself.
func (p *Processor) thumbnail(src string, level int) (string, error) {
	img, err := p.sampled(src, level)
	if errors.Is(err, errNoBitmap) {
		logging.Warn("imageproc: no bitmap for %s, thumbnail links to the source: %v", src, err)
		return src, nil
	}
	if err != nil {
		return "", err
	}

	img = upright(img, ReadOrientation(src))

	dst := siblingPath(src, fmt.Sprintf("-scale-%d", level))
	if err := saveImage(img, dst); err != nil {
		return "", err
	}
	logging.Debug("imageproc: thumbnail %s (%dx%d)", dst, img.Bounds().Dx(), img.Bounds().Dy())
	return dst, nil
}

// sampled decodes src at 1/SampleSize of its size.
func (p *Processor) sampled(src string, level int) (image.Image, error) {
	width, height, err := Dimensions(src)
	if err != nil {
		return nil, err
	}

	n := SampleSize(max(width, height), level)
	w, h := max(1, width/n), max(1, height/n)

	if p.opts.UseVips && IsVipsAvailable() {
		img, err := loadWithVips(src, w, h)
		if err == nil {
			return img, nil
		}
		logging.Debug("imageproc: vips decode of %s failed, using imaging: %v", src, err)
	}

	img, err := decodeFile(src)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return img, nil
	}
	return imaging.Resize(img, w, h, imaging.Box), nil
}

// upright rotates img so that an image tagged with orientation o displays
// correctly without the tag.
func upright(img image.Image, o int) image.Image {
	switch o {
	case OrientationRotate90:
		return imaging.Rotate270(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
