package imageproc

import (
	"fmt"

	"github.com/corona10/goimagehash"

	"media-picker/internal/picker"
)

// Fingerprint returns the 64-bit difference hash of the image at path as
// 16 hex digits. Visually similar images have hashes with a small Hamming
// distance.
func Fingerprint(path string) (string, error) {
	img, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", hash.GetHash()), nil
}

func (p *Processor) fingerprint(item *picker.Item) picker.Result {
	fp, err := Fingerprint(item.ResolvedPath)
	if err != nil {
		return picker.Degraded(picker.StageFingerprint,
			picker.Wrap(picker.ErrMetadata, picker.StageFingerprint, item.ResolvedPath, err))
	}
	item.Fingerprint = fp
	return picker.Done(picker.StageFingerprint)
}
