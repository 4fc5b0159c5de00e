package writer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/logging"
)

const root = "/data/captures"

type failingEncoder struct {
	ext string
}

func (e failingEncoder) Encode(*image.RGBA) ([]byte, error) {
	return nil, errors.New("encoder broke")
}

func (e failingEncoder) Ext() string { return e.ext }

func newTestWriter(t *testing.T, fs afero.Fs, slot *frame.Slot) *Writer {
	t.Helper()
	pngEnc, err := encoder.NewPNGEncoder("default")
	if err != nil {
		t.Fatalf("NewPNGEncoder() error = %v", err)
	}
	w, err := New(fs, root, slot, encoder.NewJPEGEncoder(encoder.DefaultJPEGQuality), pngEnc, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func storeSolid(slot *frame.Slot, c color.RGBA) {
	slot.Store(&frame.Frame{Image: frame.Solid(32, 24, c), Timestamp: time.Now()})
}

func listDir(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestNewCreatesDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := newTestWriter(t, fs, frame.NewSlot())

	want := Dirs{JPG: filepath.Join(root, "jpg_images"), PNG: filepath.Join(root, "png_images")}
	if w.Dirs() != want {
		t.Errorf("Dirs() = %+v, want %+v", w.Dirs(), want)
	}
	for _, dir := range []string{want.JPG, want.PNG} {
		if ok, _ := afero.DirExists(fs, dir); !ok {
			t.Errorf("directory %s was not created", dir)
		}
	}
}

func TestNewFailsWhenDirectoriesCannotBeCreated(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	pngEnc, _ := encoder.NewPNGEncoder("default")

	_, err := New(fs, root, frame.NewSlot(), encoder.NewJPEGEncoder(90), pngEnc, nil)
	if err == nil {
		t.Fatal("expected error on read-only filesystem")
	}
}

func TestCaptureWithoutFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	var logs bytes.Buffer
	pngEnc, err := encoder.NewPNGEncoder("default")
	if err != nil {
		t.Fatalf("NewPNGEncoder() error = %v", err)
	}
	w, err := New(fs, root, frame.NewSlot(), encoder.NewJPEGEncoder(encoder.DefaultJPEGQuality), pngEnc,
		logging.New(&logs, "warn", "text"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = w.Capture()
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Capture() error = %v, want ErrNoFrame", err)
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d, want 0", w.Count())
	}
	if n := len(listDir(t, fs, w.Dirs().JPG)) + len(listDir(t, fs, w.Dirs().PNG)); n != 0 {
		t.Errorf("%d files written without a frame", n)
	}
	out := logs.String()
	if n := strings.Count(out, "level=WARN"); n != 1 {
		t.Errorf("got %d warnings, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, "no image received yet") {
		t.Errorf("warning missing from log output:\n%s", out)
	}
}

func TestCaptureSequence(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w := newTestWriter(t, fs, slot)
	storeSolid(slot, color.RGBA{R: 0x80, A: 0xff})

	const n = 12
	for i := 0; i < n; i++ {
		res, err := w.Capture()
		if err != nil {
			t.Fatalf("Capture() #%d error = %v", i, err)
		}
		if res.Seq != i {
			t.Errorf("Capture() #%d Seq = %d", i, res.Seq)
		}
		if len(res.Files) != 2 {
			t.Errorf("Capture() #%d wrote %d files, want 2", i, len(res.Files))
		}
	}

	var wantJPG, wantPNG []string
	for i := 0; i < n; i++ {
		wantJPG = append(wantJPG, fmt.Sprintf("image_%04d.jpg", i))
		wantPNG = append(wantPNG, fmt.Sprintf("image_%04d.png", i))
	}
	if got := listDir(t, fs, w.Dirs().JPG); fmt.Sprint(got) != fmt.Sprint(wantJPG) {
		t.Errorf("jpg files = %v, want %v", got, wantJPG)
	}
	if got := listDir(t, fs, w.Dirs().PNG); fmt.Sprint(got) != fmt.Sprint(wantPNG) {
		t.Errorf("png files = %v, want %v", got, wantPNG)
	}
	if w.Count() != n {
		t.Errorf("Count() = %d, want %d", w.Count(), n)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w := newTestWriter(t, fs, slot)
	want := color.RGBA{R: 0x30, G: 0x90, B: 0xd0, A: 0xff}
	storeSolid(slot, want)

	res, err := w.Capture()
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	jf, err := fs.Open(res.Files[0])
	if err != nil {
		t.Fatalf("open jpg: %v", err)
	}
	defer jf.Close()
	jimg, err := jpeg.Decode(jf)
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}

	pf, err := fs.Open(res.Files[1])
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer pf.Close()
	pimg, err := png.Decode(pf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}

	bounds := image.Rect(0, 0, 32, 24)
	if jimg.Bounds() != bounds || pimg.Bounds() != bounds {
		t.Fatalf("bounds jpg=%v png=%v, want %v", jimg.Bounds(), pimg.Bounds(), bounds)
	}

	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -8 && d <= 8
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			p := color.RGBAModel.Convert(pimg.At(x, y)).(color.RGBA)
			if p != want {
				t.Fatalf("png pixel (%d,%d) = %v, want %v", x, y, p, want)
			}
			j := color.RGBAModel.Convert(jimg.At(x, y)).(color.RGBA)
			if !near(j.R, want.R) || !near(j.G, want.G) || !near(j.B, want.B) {
				t.Fatalf("jpg pixel (%d,%d) = %v, not within tolerance of %v", x, y, j, want)
			}
		}
	}
}

func TestCaptureLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w := newTestWriter(t, fs, slot)
	storeSolid(slot, color.RGBA{A: 0xff})

	if _, err := w.Capture(); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	for _, dir := range []string{w.Dirs().JPG, w.Dirs().PNG} {
		names := listDir(t, fs, dir)
		if len(names) != 1 {
			t.Errorf("%s contains %v, want a single image", dir, names)
		}
	}
}

func TestCapturePartialFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w, err := New(fs, root, slot, encoder.NewJPEGEncoder(90), failingEncoder{ext: "png"}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	storeSolid(slot, color.RGBA{G: 0xff, A: 0xff})

	res, err := w.Capture()
	if err == nil {
		t.Fatal("expected error when png encoding fails")
	}
	var ferr *FileError
	if !errors.As(err, &ferr) {
		t.Fatalf("error %v is not a *FileError", err)
	}
	if ferr.Format != "png" {
		t.Errorf("FileError.Format = %q, want png", ferr.Format)
	}
	if len(res.Files) != 1 || filepath.Base(res.Files[0]) != "image_0000.jpg" {
		t.Errorf("Files = %v, want only image_0000.jpg", res.Files)
	}
	if w.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after a partial write", w.Count())
	}
	if names := listDir(t, fs, w.Dirs().PNG); len(names) != 0 {
		t.Errorf("png dir contains %v after failed write", names)
	}

	res, _ = w.Capture()
	if res.Seq != 1 {
		t.Errorf("next capture Seq = %d, want 1", res.Seq)
	}
}

func TestCaptureTotalFailureKeepsCounter(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w, err := New(fs, root, slot, failingEncoder{ext: "jpg"}, failingEncoder{ext: "png"}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	storeSolid(slot, color.RGBA{A: 0xff})

	res, err := w.Capture()
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res.Files) != 0 {
		t.Errorf("Files = %v, want none", res.Files)
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d, want 0", w.Count())
	}
}

func TestCaptureWriteFailureOnReadOnlyFs(t *testing.T) {
	base := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w := newTestWriter(t, base, slot)
	// directories exist, files cannot be created
	w.fs = afero.NewReadOnlyFs(base)
	storeSolid(slot, color.RGBA{A: 0xff})

	_, err := w.Capture()
	var ferr *FileError
	if !errors.As(err, &ferr) {
		t.Fatalf("Capture() error = %v, want *FileError", err)
	}
	if w.Count() != 0 {
		t.Errorf("Count() = %d, want 0", w.Count())
	}
}

func TestNewWriterRestartsAtZero(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	storeSolid(slot, color.RGBA{R: 1, A: 0xff})

	first := newTestWriter(t, fs, slot)
	for i := 0; i < 3; i++ {
		if _, err := first.Capture(); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
	}

	second := newTestWriter(t, fs, slot)
	res, err := second.Capture()
	if err != nil {
		t.Fatalf("Capture() after restart error = %v", err)
	}
	if res.Seq != 0 {
		t.Errorf("Seq after restart = %d, want 0", res.Seq)
	}
	if names := listDir(t, fs, second.Dirs().JPG); len(names) != 3 {
		t.Errorf("jpg dir = %v, want the 3 files from the first run", names)
	}
}

func TestConcurrentCapturesAreSerialized(t *testing.T) {
	fs := afero.NewMemMapFs()
	slot := frame.NewSlot()
	w := newTestWriter(t, fs, slot)
	storeSolid(slot, color.RGBA{B: 0xff, A: 0xff})

	const n = 8
	seqs := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := w.Capture()
			if err != nil {
				t.Errorf("Capture() error = %v", err)
				return
			}
			seqs <- res.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int]bool)
	for s := range seqs {
		if seen[s] {
			t.Errorf("sequence %d used twice", s)
		}
		seen[s] = true
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			t.Errorf("sequence %d missing", i)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		seq  int
		ext  string
		want string
	}{
		{0, "jpg", "image_0000.jpg"},
		{42, "png", "image_0042.png"},
		{12345, "jpg", "image_12345.jpg"},
	}
	for _, tt := range tests {
		if got := fileName(tt.seq, tt.ext); got != tt.want {
			t.Errorf("fileName(%d, %q) = %q, want %q", tt.seq, tt.ext, got, tt.want)
		}
	}
}
