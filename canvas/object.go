package canvas

import (
	"image"

	"github.com/oklog/ulid/v2"
)

type (
	// Kind names the variant of a drawable.
	Kind string

	// Transform positions a drawable. For user objects it is expressed in
	// base-resolution coordinates; Surface.Current projects it to the
	// rendered size.
	Transform struct {
		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		ScaleX float64 `json:"scaleX"`
		ScaleY float64 `json:"scaleY"`
		Angle  float64 `json:"angle"`
	}

	// Origin is the anchor inside the object's own box, as fractions of its
	// width and height. Left/Top place this point.
	Origin struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Base holds the attributes shared by every drawable variant.
	Base struct {
		ID         string
		Layout     Transform
		Origin     Origin
		Opacity    float64
		Selectable bool
		// Pinned objects stay above every unpinned object.
		Pinned   bool
		Controls Controls
	}

	// Drawable is implemented by *Image, *Text and *Overlay.
	Drawable interface {
		Kind() Kind
		Props() *Base
	}

	Image struct {
		Base
		Source string
		Width  int
		Height int
		Pixels image.Image
	}

	Text struct {
		Base
		Content    string
		FontFamily string
		Fill       string
		FontSize   float64
		// Width is the wrapping width of a text box; zero means the text is
		// laid out on its explicit line breaks only.
		Width    float64
		Align    string
		Editable bool
		Editing  bool
	}
)

const (
	KindImage   Kind = "image"
	KindText    Kind = "text"
	KindOverlay Kind = "overlay"
)

var (
	OriginTopLeft = Origin{X: 0, Y: 0}
	OriginCenter  = Origin{X: 0.5, Y: 0.5}
	OriginTop     = Origin{X: 0.5, Y: 0}
)

func (b *Base) Props() *Base { return b }

func (*Image) Kind() Kind { return KindImage }
func (*Text) Kind() Kind  { return KindText }

func newBase(controls Controls) Base {
	return Base{
		ID:         ulid.Make().String(),
		Layout:     Transform{ScaleX: 1, ScaleY: 1},
		Opacity:    1,
		Selectable: true,
		Controls:   controls,
	}
}

// NewImage creates an interactive image object with the standard control
// set. The object is not placed; callers position it with Place or set
// Layout directly.
func NewImage(source string, pixels image.Image) *Image {
	b := pixels.Bounds()
	return &Image{
		Base:   newBase(StandardControls()),
		Source: source,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: pixels,
	}
}

// NewText creates an editable text object with the standard control set.
func NewText(content, fontFamily, fill string, fontSize float64) *Text {
	return &Text{
		Base:       newBase(StandardControls()),
		Content:    content,
		FontFamily: fontFamily,
		Fill:       fill,
		FontSize:   fontSize,
		Align:      "left",
		Editable:   true,
	}
}

// Is reports whether a and b are the same object.
func Is(a, b Drawable) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Props() == b.Props()
}
