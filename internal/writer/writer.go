// Package writer persists the latest frame as a numbered JPEG/PNG pair.
//
// Files are named image_NNNN.<ext> inside one subdirectory per format. The
// sequence starts at zero for every Writer; files left by an earlier run
// with the same number are overwritten.
package writer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/logging"
)

// Subdirectory names under the save directory.
const (
	JPGDir = "jpg_images"
	PNGDir = "png_images"
)

// ErrNoFrame is returned by Capture when no frame has been received yet.
var ErrNoFrame = errors.New("no image received yet")

// FileError reports a failure to produce one output file.
type FileError struct {
	Format string
	Path   string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("write %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Dirs are the output directories, one per format.
type Dirs struct {
	JPG string
	PNG string
}

// Result describes one capture.
type Result struct {
	// Seq is the sequence number the files were written under.
	Seq int
	// Files lists the paths written, in format order.
	Files []string
}

type target struct {
	dir string
	enc encoder.Encoder
}

// Writer encodes the frame held in a Slot and writes it to disk.
type Writer struct {
	fs      afero.Fs
	dirs    Dirs
	slot    *frame.Slot
	targets []target
	logger  *slog.Logger

	mu  sync.Mutex // serializes captures and guards seq
	seq int
}

// New creates the output directories under root and returns a Writer.
// A directory that cannot be created is returned as an error; the caller
// cannot proceed without it.
func New(fs afero.Fs, root string, slot *frame.Slot, jpg, png encoder.Encoder, logger *slog.Logger) (*Writer, error) {
	dirs := Dirs{
		JPG: filepath.Join(root, JPGDir),
		PNG: filepath.Join(root, PNGDir),
	}
	for _, dir := range []string{root, dirs.JPG, dirs.PNG} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	return &Writer{
		fs:   fs,
		dirs: dirs,
		slot: slot,
		targets: []target{
			{dir: dirs.JPG, enc: jpg},
			{dir: dirs.PNG, enc: png},
		},
		logger: logging.OrDiscard(logger),
	}, nil
}

// Dirs returns the output directories.
func (w *Writer) Dirs() Dirs {
	return w.dirs
}

// Count returns the number of captures written so far, which is also the
// next sequence number.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Capture writes the currently held frame in both formats.
//
// Both formats are always attempted. The sequence number advances once both
// attempts are done if at least one file was written, so a partial pair
// never shares its number with the next capture. Failures are returned as
// *FileError values joined together.
func (w *Writer) Capture() (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.slot.Load()
	if !ok {
		w.logger.Warn("no image received yet, please wait")
		return Result{}, ErrNoFrame
	}

	res := Result{Seq: w.seq}
	var errs []error
	for _, t := range w.targets {
		path := filepath.Join(t.dir, fileName(w.seq, t.enc.Ext()))
		if err := w.writeFile(path, f, t.enc); err != nil {
			ferr := &FileError{Format: t.enc.Ext(), Path: path, Err: err}
			w.logger.Error("failed to save image", "format", ferr.Format, "file", path, "error", err)
			errs = append(errs, ferr)
			continue
		}
		res.Files = append(res.Files, path)
	}

	if len(res.Files) > 0 {
		w.seq++
		w.logger.Info("saved image",
			"files", res.Files,
			"count", w.seq,
			"frame_seq", f.Seq,
			"frame_time", f.Timestamp)
	}
	return res, errors.Join(errs...)
}

func (w *Writer) writeFile(path string, f *frame.Frame, enc encoder.Encoder) error {
	data, err := enc.Encode(f.Image)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if exists, _ := afero.Exists(w.fs, path); exists {
		w.logger.Warn("overwriting existing image", "file", path)
	}
	return writeAtomic(w.fs, path, data)
}

// writeAtomic writes data next to path and renames it into place, so a
// reader never sees a partially written image.
func writeAtomic(fs afero.Fs, path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	tmp, err := afero.TempFile(fs, dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func fileName(seq int, ext string) string {
	return fmt.Sprintf("image_%04d.%s", seq, ext)
}
