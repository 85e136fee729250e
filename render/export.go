// Package render turns design surfaces into flat images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"mycase-designer/canvas"

	"github.com/sirupsen/logrus"
)

// MaxExportWidth bounds the requested output width.
const MaxExportWidth = 4096

type (
	// Target is something that owns a surface and serializes access to it.
	Target interface {
		canvas.Executor
		Surface() *canvas.Surface
	}

	Options struct {
		// Width of the output in pixels; zero keeps the rendered width.
		Width          int
		IncludeOverlay bool
	}

	Exporter struct {
		raster *Rasterizer
	}
)

func NewExporter(fonts *Fonts) *Exporter {
	return &Exporter{raster: NewRasterizer(fonts)}
}

// Snapshot takes a render pass of the target's surface. Unless the overlay
// is included it is hidden for the pass and put back before Snapshot
// returns, whatever happens in between.
func Snapshot(target Target, includeOverlay bool) canvas.Scene {
	var scene canvas.Scene
	target.Do(func() {
		s := target.Surface()
		if !includeOverlay {
			restore := s.DetachOverlay()
			defer restore()
		}
		s.Render()
		scene = s.Scene()
	})
	return scene
}

// ExportPNG flattens the target's design into a PNG. The placeholder is
// never exported.
func (e *Exporter) ExportPNG(ctx context.Context, target Target, opts Options) ([]byte, error) {
	scene := Snapshot(target, opts.IncludeOverlay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := opts.Width
	if width <= 0 {
		width = scene.Width
	}
	if width > MaxExportWidth {
		return nil, fmt.Errorf("export width %d exceeds %d", width, MaxExportWidth)
	}
	img, err := e.raster.Rasterize(scene, width, func(it canvas.Item) bool { return it.Placeholder })
	if err != nil {
		return nil, fmt.Errorf("rasterize design: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode design: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"width":   img.Bounds().Dx(),
		"height":  img.Bounds().Dy(),
		"overlay": opts.IncludeOverlay,
		"items":   len(scene.Items),
	}).Debug("Design exported successfully")
	return buf.Bytes(), nil
}
