package imageproc

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"media-picker/internal/filesystem"
	"media-picker/internal/logging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// encodeQuality is the JPEG quality used for every re-encoded file.
const encodeQuality = 100

// errNoBitmap marks a file that opened but did not decode to an image.
var errNoBitmap = errors.New("image did not decode")

// Dimensions returns the declared width and height of the image at path
// without decoding pixel data.
func Dimensions(path string) (int, int, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 0, 0, err
	}
	defer closeFile(file, path)

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errNoBitmap, err)
	}
	return config.Width, config.Height, nil
}

// decodeFile decodes the image at path as stored, without applying EXIF
// orientation. Decode failures wrap errNoBitmap; open failures do not.
func decodeFile(path string) (image.Image, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer closeFile(file, path)

	img, err := imaging.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoBitmap, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errNoBitmap
	}
	return img, nil
}

// saveImage encodes img to path in the format implied by its extension,
// falling back to JPEG. A partially written file is removed on failure.
func saveImage(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		format = imaging.JPEG
	}

	out, err := filesystem.CreateWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}

	if err := imaging.Encode(out, img, format, imaging.JPEGQuality(encodeQuality)); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// isJPEG reports whether path will be written as JPEG by saveImage.
func isJPEG(path string) bool {
	format, err := imaging.FormatFromFilename(path)
	return err != nil || format == imaging.JPEG
}

// siblingPath inserts marker before the last extension dot of the file name:
// /a/b.c.jpg with "-resized" becomes /a/b.c-resized.jpg.
func siblingPath(p, marker string) string {
	dir, name := filepath.Split(p)
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return dir + name + marker
	}
	return dir + name[:dot] + marker + name[dot:]
}

func closeFile(f *os.File, path string) {
	if err := f.Close(); err != nil {
		logging.Warn("failed to close image file %s: %v", path, err)
	}
}
