// Package uploads keeps the photos a visitor attached to a design session.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/transform"
	"github.com/h2non/filetype"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotImage = errors.New("file is not an image")
	ErrNotFound = errors.New("upload not found")
	ErrTooLarge = errors.New("file too large")
)

const (
	ThumbnailSize = 120
	MaxFileSize   = 15 << 20
	// MaxPixels bounds the decoded size of an upload. Compressed formats can
	// declare far more pixels than their byte size suggests.
	MaxPixels = 40_000_000
)

type (
	// File is one uploaded photo. Data is kept as received so it can be
	// forwarded with the order.
	File struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		ContentType string      `json:"contentType"`
		Size        int         `json:"size"`
		Width       int         `json:"width"`
		Height      int         `json:"height"`
		CreatedAt   time.Time   `json:"createdAt"`
		Data        []byte      `json:"-"`
		Image       image.Image `json:"-"`
		Thumbnail   []byte      `json:"-"`
	}

	Registry struct {
		mu    sync.RWMutex
		files map[string]*File
		order []string
	}
)

func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*File)}
}

// Add sniffs, decodes and thumbnails data. Only image content is accepted,
// whatever the file name claims.
func (r *Registry) Add(filename string, data []byte) (*File, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, filename)
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, fmt.Errorf("sniff %s: %w", filename, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotImage, filename, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d pixels", ErrTooLarge, filename, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotImage, filename, err)
	}
	thumb, err := Thumbnail(img, ThumbnailSize)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	f := &File{
		ID:          ulid.Make().String(),
		Name:        path.Base(filename),
		ContentType: kind.MIME.Value,
		Size:        len(data),
		Width:       b.Dx(),
		Height:      b.Dy(),
		CreatedAt:   time.Now(),
		Data:        data,
		Image:       img,
		Thumbnail:   thumb,
	}

	r.mu.Lock()
	r.files[f.ID] = f
	r.order = append(r.order, f.ID)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"file_id": f.ID,
		"name":    f.Name,
		"type":    f.ContentType,
		"size":    f.Size,
	}).Info("Upload registered successfully")
	return f, nil
}

func (r *Registry) Get(id string) (*File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return ErrNotFound
	}
	delete(r.files, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns the uploads in the order they were added.
func (r *Registry) List() []*File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*File, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.files[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]*File)
	r.order = nil
}

// Thumbnail scales img so its longer side is limit pixels and encodes it as
// PNG. Images already smaller are not upscaled.
func Thumbnail(img image.Image, limit int) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	if w > limit || h > limit {
		if w >= h {
			h = limit * h / w
			w = limit
		} else {
			w = limit * w / h
			h = limit
		}
		w, h = atLeastOne(w), atLeastOne(h)
		img = transform.Resize(img, w, h, transform.Linear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
