package mediatypes

import (
	"bufio"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLen is the number of leading bytes Sniff looks at.
const SniffLen = 3072

// Sniff detects a MIME type from the leading bytes of a stream. It returns
// "" when the content is not recognised or is plain text.
func Sniff(header []byte) string {
	if len(header) == 0 {
		return ""
	}
	detected := Normalize(mimetype.Detect(header).String())
	switch detected {
	case "application/octet-stream", "text/plain":
		return ""
	}
	return detected
}

// SniffReader peeks at the head of r without consuming it.
func SniffReader(r *bufio.Reader) (string, error) {
	header, err := r.Peek(SniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", err
	}
	return Sniff(header), nil
}
