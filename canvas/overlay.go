package canvas

import (
	"image"

	"github.com/oklog/ulid/v2"
)

// OverlayMode selects where the product mockup is composited.
type OverlayMode int

const (
	// OverlayTop paints the mockup above the design (phone cases).
	OverlayTop OverlayMode = iota
	// OverlayBackground paints the mockup below the design (thermoses).
	OverlayBackground
)

func (m OverlayMode) String() string {
	if m == OverlayBackground {
		return "background"
	}
	return "top"
}

// Overlay is the non-interactive product mockup. Its scale is always derived
// from OriginalWidth/OriginalHeight and the surface size, never accumulated.
type Overlay struct {
	Base
	Source         string
	Pixels         image.Image
	OriginalWidth  int
	OriginalHeight int
	ScaleX         float64
	ScaleY         float64
	Mode           OverlayMode
	Hidden         bool
}

func (*Overlay) Kind() Kind { return KindOverlay }

// NewOverlay wraps a decoded mockup image.
func NewOverlay(source string, pixels image.Image, mode OverlayMode) *Overlay {
	b := pixels.Bounds()
	return &Overlay{
		Base: Base{
			ID:      ulid.Make().String(),
			Layout:  Transform{ScaleX: 1, ScaleY: 1},
			Origin:  OriginTopLeft,
			Opacity: 1,
		},
		Source:         source,
		Pixels:         pixels,
		OriginalWidth:  b.Dx(),
		OriginalHeight: b.Dy(),
		ScaleX:         1,
		ScaleY:         1,
		Mode:           mode,
	}
}

// Fit stretches the overlay so it exactly covers a width x height surface.
func (o *Overlay) Fit(width, height int) {
	if o.OriginalWidth <= 0 || o.OriginalHeight <= 0 {
		return
	}
	o.ScaleX = float64(width) / float64(o.OriginalWidth)
	o.ScaleY = float64(height) / float64(o.OriginalHeight)
}
