package imageproc

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"media-picker/internal/logging"
	"media-picker/internal/picker"
)

// resizedMarker is inserted into the name of a bounded copy.
const resizedMarker = "-resized"

// ScaledDimensions fits width x height inside maxWidth x maxHeight while
// keeping the aspect ratio. One scale factor is applied to both axes. A
// non-positive bound leaves that axis unconstrained, and images that already
// fit are returned unchanged.
func ScaledDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	ratio := math.Inf(1)
	if maxWidth > 0 {
		ratio = math.Min(ratio, float64(maxWidth)/float64(width))
	}
	if maxHeight > 0 {
		ratio = math.Min(ratio, float64(maxHeight)/float64(height))
	}
	if ratio >= 1 {
		return width, height
	}

	w := max(1, int(math.Round(float64(width)*ratio)))
	h := max(1, int(math.Round(float64(height)*ratio)))
	return w, h
}

// scaleImage resamples src to w x h with an affine scale transform.
func scaleImage(src image.Image, w, h int) *image.NRGBA {
	b := src.Bounds()
	sx := float64(w) / float64(b.Dx())
	sy := float64(h) / float64(b.Dy())

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	s2d := f64.Aff3{
		sx, 0, -float64(b.Min.X) * sx,
		0, sy, -float64(b.Min.Y) * sy,
	}
	draw.BiLinear.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}

// bound writes a downscaled copy of the item's image next to it when the
// image exceeds the configured bounds, and moves the item onto the copy.
// The EXIF orientation of the source is carried over to JPEG copies.
func (p *Processor) bound(item *picker.Item) picker.Result {
	src := item.ResolvedPath

	width, height, err := Dimensions(src)
	if err != nil {
		return boundFailed(src, "dimensions", err)
	}

	w, h := ScaledDimensions(width, height, p.opts.MaxWidth, p.opts.MaxHeight)
	if w == width && h == height {
		return picker.Skipped(picker.StageBound)
	}

	orientation := ReadOrientation(src)

	img, err := decodeFile(src)
	if err != nil {
		return boundFailed(src, "decode", err)
	}

	dst := siblingPath(src, resizedMarker)
	if err := saveImage(scaleImage(img, w, h), dst); err != nil {
		return boundFailed(src, "encode", err)
	}

	if isJPEG(dst) && orientation != OrientationNormal {
		if err := WriteOrientation(dst, orientation); err != nil {
			logging.Warn("imageproc: cannot keep orientation %d on %s: %v", orientation, dst, err)
		}
	}

	item.OriginalFile = src
	item.SetResolvedPath(dst)
	item.Width, item.Height = w, h

	logging.Debug("imageproc: bounded %s from %dx%d to %dx%d", src, width, height, w, h)
	return picker.Done(picker.StageBound)
}

func boundFailed(path, op string, err error) picker.Result {
	logging.Warn("imageproc: bounding %s failed at %s: %v", path, op, err)
	return picker.Degraded(picker.StageBound, picker.Wrap(picker.ErrBounding, picker.StageBound, op, err))
}
