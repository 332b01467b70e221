// Package imageproc post-processes materialized images: it bounds their
// dimensions, reads EXIF metadata, writes big and small thumbnails and
// computes a perceptual fingerprint.
//
// Each stage reports a picker.Result. Bounding, metadata and fingerprint
// failures are Degraded and leave the item usable; a thumbnail failure is
// Fatal. A thumbnail whose source does not decode to a bitmap links to the
// source file instead of failing.
//
// libvips is used for thumbnail decoding only when InitVips has been called
// and Options.UseVips is set; otherwise decoding goes through imaging.
package imageproc
