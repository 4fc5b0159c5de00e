package feed

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/logging"
)

// ErrNoImages is returned by LoadDir when the directory holds no usable image.
var ErrNoImages = errors.New("no images found")

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Playlist cycles through a fixed list of images.
type Playlist struct {
	images []*image.RGBA
	next   int
}

// NewPlaylist creates a Playlist over images, which must not be empty.
func NewPlaylist(images []*image.RGBA) *Playlist {
	return &Playlist{images: images}
}

// Next returns the next image, wrapping around at the end.
func (p *Playlist) Next() *image.RGBA {
	img := p.images[p.next]
	p.next = (p.next + 1) % len(p.images)
	return img
}

// Len returns the number of images.
func (p *Playlist) Len() int {
	return len(p.images)
}

// LoadDir decodes every JPEG and PNG file in dir, in name order. Files that
// fail to decode are skipped with a warning.
func LoadDir(fs afero.Fs, dir string, logger *slog.Logger) (*Playlist, error) {
	logger = logging.OrDiscard(logger)

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	dec := decoder.NewImageDecoder()
	var images []*image.RGBA
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			logger.Warn("skipping unreadable image", "file", path, "error", err)
			continue
		}
		img, err := dec.Decode(data)
		if err != nil {
			logger.Warn("skipping undecodable image", "file", path, "error", err)
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	logger.Info("loaded images", "dir", dir, "count", len(images))
	return NewPlaylist(images), nil
}
