package imageproc

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rwcarlsen/goexif/exif"

	"media-picker/internal/mediatypes"
	"media-picker/internal/picker"
)

// createTestImage writes a gradient image so resizing is visible.
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image file: %v", err)
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".png":
		err = png.Encode(f, img)
	default:
		t.Fatalf("Unsupported test image format: %s", path)
	}
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

func imageItem(path string) *picker.Item {
	it := picker.NewItem(path, mediatypes.KindImage)
	it.MimeType = mediatypes.GuessFromPath(path, mediatypes.KindImage)
	return it
}

func mustDimensions(t *testing.T, path string) (int, int) {
	t.Helper()
	w, h, err := Dimensions(path)
	if err != nil {
		t.Fatalf("Dimensions(%s): %v", path, err)
	}
	return w, h
}

func TestScaledDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"landscape into square", 4000, 3000, 1000, 1000, 1000, 750},
		{"portrait into square", 3000, 4000, 1000, 1000, 750, 1000},
		{"already within bounds", 800, 600, 1000, 1000, 800, 600},
		{"exactly at bounds", 1000, 1000, 1000, 1000, 1000, 1000},
		{"height limited", 1000, 2000, 1000, 500, 250, 500},
		{"only width bound", 4000, 3000, 2000, 0, 2000, 1500},
		{"only height bound", 4000, 3000, 0, 300, 400, 300},
		{"no bounds", 4000, 3000, 0, 0, 4000, 3000},
		{"tiny side clamps to one", 10000, 1, 100, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledDimensions(tt.w, tt.h, tt.maxW, tt.maxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ScaledDimensions(%d, %d, %d, %d) = %dx%d, want %dx%d",
					tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestSampleSize(t *testing.T) {
	tests := []struct {
		longest int
		level   int
		want    int
	}{
		{4000, ScaleBig, 6},
		{3001, ScaleBig, 6},
		{3000, ScaleBig, 5},
		{2500, ScaleBig, 5},
		{2500, ScaleSmall, 10},
		{2000, ScaleBig, 4},
		{1500, ScaleBig, 3},
		{1000, ScaleBig, 2},
		{401, ScaleBig, 2},
		{400, ScaleBig, 1},
		{300, ScaleBig, 1},
		{300, ScaleSmall, 2},
		{300, 0, 1},
	}

	for _, tt := range tests {
		if got := SampleSize(tt.longest, tt.level); got != tt.want {
			t.Errorf("SampleSize(%d, %d) = %d, want %d", tt.longest, tt.level, got, tt.want)
		}
	}
}

func TestSiblingPath(t *testing.T) {
	tests := []struct {
		in     string
		marker string
		want   string
	}{
		{"/a/photo.jpg", "-resized", "/a/photo-resized.jpg"},
		{"/a/b.c.jpg", "-resized", "/a/b.c-resized.jpg"},
		{"/a/noext", "-scale-1", "/a/noext-scale-1"},
		{"/a/.hidden", "-scale-2", "/a/.hidden-scale-2"},
		{"/a.dir/photo", "-resized", "/a.dir/photo-resized"},
	}

	for _, tt := range tests {
		if got := siblingPath(tt.in, tt.marker); got != tt.want {
			t.Errorf("siblingPath(%q, %q) = %q, want %q", tt.in, tt.marker, got, tt.want)
		}
	}
}

func TestWriteOrientation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	createTestImage(t, path, 40, 20)

	if got := ReadOrientation(path); got != OrientationNormal {
		t.Fatalf("ReadOrientation before write = %d, want %d", got, OrientationNormal)
	}

	for _, o := range []int{OrientationRotate90, OrientationRotate180, OrientationRotate270} {
		if err := WriteOrientation(path, o); err != nil {
			t.Fatalf("WriteOrientation(%d): %v", o, err)
		}
		if got := ReadOrientation(path); got != o {
			t.Errorf("ReadOrientation after writing %d = %d", o, got)
		}
	}

	if w, h := mustDimensions(t, path); w != 40 || h != 20 {
		t.Errorf("image damaged by orientation write: %dx%d", w, h)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

// setMake stores an EXIF camera make in the JPEG at path.
func setMake(t *testing.T, path, value string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	sl := mc.(*jpegstructure.SegmentList)
	ib, err := sl.ConstructExifBuilder()
	if err != nil {
		t.Fatal(err)
	}
	if err := ib.SetStandardWithName("Make", value); err != nil {
		t.Fatal(err)
	}
	if err := sl.SetExif(ib); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWriteOrientationKeepsOtherTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.jpg")
	createTestImage(t, path, 30, 10)
	setMake(t, path, "TestCam")

	if err := WriteOrientation(path, OrientationRotate270); err != nil {
		t.Fatalf("WriteOrientation: %v", err)
	}
	if got := ReadOrientation(path); got != OrientationRotate270 {
		t.Errorf("ReadOrientation = %d, want %d", got, OrientationRotate270)
	}

	x, err := readExif(path)
	if err != nil || x == nil {
		t.Fatalf("readExif: %v", err)
	}
	tag, err := x.Get(exif.Make)
	if err != nil {
		t.Fatalf("Make tag lost: %v", err)
	}
	if got, _ := tag.StringVal(); got != "TestCam" {
		t.Errorf("Make = %q, want TestCam", got)
	}
}

func TestWriteOrientationErrors(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "image.png")
	createTestImage(t, pngPath, 10, 10)

	if err := WriteOrientation(pngPath, OrientationRotate90); err == nil {
		t.Error("expected error for PNG file")
	}
	if err := WriteOrientation(pngPath, 9); err == nil {
		t.Error("expected error for out of range orientation")
	}
	if err := WriteOrientation(filepath.Join(dir, "missing.jpg"), OrientationNormal); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBound(t *testing.T) {
	t.Run("downscales and keeps orientation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.jpg")
		createTestImage(t, path, 800, 600)
		if err := WriteOrientation(path, OrientationRotate90); err != nil {
			t.Fatalf("WriteOrientation: %v", err)
		}

		item := imageItem(path)
		r := New(Options{MaxWidth: 200, MaxHeight: 200}).bound(item)

		if r.Status != picker.StatusDone {
			t.Fatalf("status = %v, err = %v", r.Status, r.Err)
		}
		want := filepath.Join(filepath.Dir(path), "big-resized.jpg")
		if item.ResolvedPath != want {
			t.Errorf("ResolvedPath = %q, want %q", item.ResolvedPath, want)
		}
		if item.OriginalFile != path {
			t.Errorf("OriginalFile = %q, want %q", item.OriginalFile, path)
		}
		if item.Width != 200 || item.Height != 150 {
			t.Errorf("item dimensions = %dx%d, want 200x150", item.Width, item.Height)
		}
		if w, h := mustDimensions(t, want); w != 200 || h != 150 {
			t.Errorf("file dimensions = %dx%d, want 200x150", w, h)
		}
		if got := ReadOrientation(want); got != OrientationRotate90 {
			t.Errorf("orientation = %d, want %d", got, OrientationRotate90)
		}
	})

	t.Run("within bounds is skipped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "small.png")
		createTestImage(t, path, 100, 50)

		item := imageItem(path)
		r := New(Options{MaxWidth: 200, MaxHeight: 200}).bound(item)

		if r.Status != picker.StatusSkipped {
			t.Errorf("status = %v, want skipped", r.Status)
		}
		if item.ResolvedPath != path || item.OriginalFile != "" {
			t.Errorf("item moved: path=%q original=%q", item.ResolvedPath, item.OriginalFile)
		}
	})

	t.Run("png stays png", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "wide.png")
		createTestImage(t, path, 300, 100)

		item := imageItem(path)
		r := New(Options{MaxWidth: 150}).bound(item)
		if r.Status != picker.StatusDone {
			t.Fatalf("status = %v, err = %v", r.Status, r.Err)
		}
		if filepath.Base(item.ResolvedPath) != "wide-resized.png" {
			t.Errorf("ResolvedPath = %q", item.ResolvedPath)
		}
		if w, h := mustDimensions(t, item.ResolvedPath); w != 150 || h != 50 {
			t.Errorf("file dimensions = %dx%d, want 150x50", w, h)
		}
	})

	t.Run("undecodable input degrades", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.jpg")
		if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}

		item := imageItem(path)
		r := New(Options{MaxWidth: 10, MaxHeight: 10}).bound(item)

		if r.Status != picker.StatusDegraded {
			t.Fatalf("status = %v, want degraded", r.Status)
		}
		if !errors.Is(r.Err, picker.ErrBounding) {
			t.Errorf("err = %v, want ErrBounding", r.Err)
		}
		if item.ResolvedPath != path {
			t.Errorf("ResolvedPath changed to %q", item.ResolvedPath)
		}
	})
}

func TestReadMetadata(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "plain.png")
	createTestImage(t, pngPath, 64, 32)

	md, err := ReadMetadata(pngPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if md.Width != 64 || md.Height != 32 {
		t.Errorf("dimensions = %dx%d, want 64x32", md.Width, md.Height)
	}
	if md.Orientation != OrientationNormal {
		t.Errorf("orientation = %d, want %d", md.Orientation, OrientationNormal)
	}
	if md.HasLocation {
		t.Error("unexpected location")
	}

	jpgPath := filepath.Join(dir, "tagged.jpg")
	createTestImage(t, jpgPath, 30, 20)
	if err := WriteOrientation(jpgPath, OrientationRotate180); err != nil {
		t.Fatal(err)
	}
	md, err = ReadMetadata(jpgPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if md.Orientation != OrientationRotate180 || md.Width != 30 || md.Height != 20 {
		t.Errorf("metadata = %+v", md)
	}
}

func TestExtractMetadata(t *testing.T) {
	p := New(Options{Metadata: true})

	path := filepath.Join(t.TempDir(), "photo.jpg")
	createTestImage(t, path, 50, 40)

	item := imageItem(path)
	if r := p.extractMetadata(item); r.Status != picker.StatusDone {
		t.Fatalf("status = %v, err = %v", r.Status, r.Err)
	}
	if item.Width != 50 || item.Height != 40 || item.Orientation != OrientationNormal {
		t.Errorf("item = %dx%d orientation %d", item.Width, item.Height, item.Orientation)
	}

	missing := imageItem(filepath.Join(t.TempDir(), "gone.jpg"))
	r := p.extractMetadata(missing)
	if r.Status != picker.StatusDegraded || !errors.Is(r.Err, picker.ErrMetadata) {
		t.Errorf("missing file: status = %v, err = %v", r.Status, r.Err)
	}
	if missing.Width != 0 || missing.Orientation != 0 {
		t.Errorf("missing file populated metadata: %+v", missing)
	}
}

func TestThumbnails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	createTestImage(t, path, 1200, 800)

	item := imageItem(path)
	r := New(Options{Thumbnails: true}).thumbnails(item)
	if r.Status != picker.StatusDone {
		t.Fatalf("status = %v, err = %v", r.Status, r.Err)
	}

	dir := filepath.Dir(path)
	big := filepath.Join(dir, "photo-scale-1.jpg")
	small := filepath.Join(dir, "photo-scale-1-scale-2.jpg")

	if item.ResolvedPath != big {
		t.Errorf("ResolvedPath = %q, want %q", item.ResolvedPath, big)
	}
	if item.ThumbnailPath != small {
		t.Errorf("ThumbnailPath = %q, want %q", item.ThumbnailPath, small)
	}
	// 1200 is sampled by 3 for the big thumbnail, 400 by 1x2 for the small one.
	if w, h := mustDimensions(t, big); w != 400 || h != 266 {
		t.Errorf("big = %dx%d, want 400x266", w, h)
	}
	if w, h := mustDimensions(t, small); w != 200 || h != 133 {
		t.Errorf("small = %dx%d, want 200x133", w, h)
	}
}

func TestThumbnailRotation(t *testing.T) {
	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{OrientationNormal, 300, 100},
		{OrientationRotate90, 100, 300},
		{OrientationRotate180, 300, 100},
		{OrientationRotate270, 100, 300},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "landscape.jpg")
		createTestImage(t, path, 300, 100)
		if err := WriteOrientation(path, tt.orientation); err != nil {
			t.Fatal(err)
		}

		out, err := New(Options{}).thumbnail(path, ScaleBig)
		if err != nil {
			t.Fatalf("orientation %d: %v", tt.orientation, err)
		}
		if w, h := mustDimensions(t, out); w != tt.wantW || h != tt.wantH {
			t.Errorf("orientation %d: thumbnail = %dx%d, want %dx%d", tt.orientation, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestThumbnailWithoutBitmapLinksToSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte("definitely not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	item := imageItem(path)
	r := New(Options{Thumbnails: true}).thumbnails(item)

	if r.Status != picker.StatusDone {
		t.Fatalf("status = %v, err = %v", r.Status, r.Err)
	}
	if item.ResolvedPath != path || item.ThumbnailPath != path {
		t.Errorf("paths = %q / %q, want both %q", item.ResolvedPath, item.ThumbnailPath, path)
	}
}

func TestThumbnailMissingSourceIsFatal(t *testing.T) {
	item := imageItem(filepath.Join(t.TempDir(), "missing.jpg"))
	r := New(Options{Thumbnails: true}).thumbnails(item)

	if !r.IsFatal() {
		t.Fatalf("status = %v, want fatal", r.Status)
	}
	if !errors.Is(r.Err, picker.ErrProcessing) || !errors.Is(r.Err, os.ErrNotExist) {
		t.Errorf("err = %v", r.Err)
	}
	if item.ThumbnailPath != "" {
		t.Errorf("ThumbnailPath = %q, want empty", item.ThumbnailPath)
	}
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	createTestImage(t, a, 64, 64)
	createTestImage(t, b, 64, 64)

	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if len(fa) != 16 {
		t.Errorf("fingerprint %q has length %d, want 16", fa, len(fa))
	}
	if fa != fb {
		t.Errorf("identical images fingerprint differently: %s vs %s", fa, fb)
	}

	if _, err := Fingerprint(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPostProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	createTestImage(t, path, 900, 600)

	p := New(Options{MaxWidth: 600, MaxHeight: 600, Metadata: true, Thumbnails: true, Fingerprint: true})
	item := imageItem(path)
	results := p.PostProcess(context.Background(), item)

	wantStages := []string{picker.StageBound, picker.StageMetadata, picker.StageThumbnails, picker.StageFingerprint}
	if len(results) != len(wantStages) {
		t.Fatalf("got %d results, want %d: %+v", len(results), len(wantStages), results)
	}
	for i, r := range results {
		if r.Stage != wantStages[i] || r.Status != picker.StatusDone {
			t.Errorf("result %d = %s/%v (%v), want %s/done", i, r.Stage, r.Status, r.Err, wantStages[i])
		}
	}
	if len(item.Results) != len(results) {
		t.Errorf("item recorded %d results, want %d", len(item.Results), len(results))
	}

	if item.Width != 600 || item.Height != 400 {
		t.Errorf("metadata dimensions = %dx%d, want 600x400", item.Width, item.Height)
	}
	if filepath.Base(item.ResolvedPath) != "photo-resized-scale-1.jpg" {
		t.Errorf("ResolvedPath = %q", item.ResolvedPath)
	}
	if item.ThumbnailPath == "" || item.Fingerprint == "" {
		t.Errorf("thumbnail=%q fingerprint=%q", item.ThumbnailPath, item.Fingerprint)
	}
}

func TestPostProcessStopsAtFatal(t *testing.T) {
	item := imageItem(filepath.Join(t.TempDir(), "missing.jpg"))
	results := New(Options{Thumbnails: true, Fingerprint: true}).PostProcess(context.Background(), item)

	if len(results) != 1 || !results[0].IsFatal() || results[0].Stage != picker.StageThumbnails {
		t.Fatalf("results = %+v, want a single fatal thumbnails result", results)
	}
}

func TestPostProcessDisabledStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	createTestImage(t, path, 20, 20)

	item := imageItem(path)
	if results := New(Options{}).PostProcess(context.Background(), item); len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
	if item.ResolvedPath != path {
		t.Errorf("ResolvedPath = %q", item.ResolvedPath)
	}
}

func TestPostProcessCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	createTestImage(t, path, 20, 20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := New(Options{Metadata: true}).PostProcess(ctx, imageItem(path))
	if len(results) != 1 || !results[0].IsFatal() || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("results = %+v", results)
	}
}
