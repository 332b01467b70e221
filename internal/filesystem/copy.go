package filesystem

import (
	"fmt"
	"io"
	"os"

	"media-picker/internal/logging"
)

// CopyFile streams src to dst, creating or truncating dst.
func CopyFile(src, dst string) (int64, error) {
	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return 0, err
	}
	defer closeQuietly(in, src)

	return WriteStream(dst, in)
}

// WriteStream copies r into a new file at dst. A partially written dst is
// removed when the copy fails.
func WriteStream(dst string, r io.Reader) (int64, error) {
	out, err := CreateWithRetry(dst, DefaultRetryConfig())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		removeQuietly(dst)
		return n, fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		removeQuietly(dst)
		return n, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}

func closeQuietly(c io.Closer, name string) {
	if err := c.Close(); err != nil {
		logging.Debug("close %s: %v", name, err)
	}
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Debug("remove partial file %s: %v", path, err)
	}
}
