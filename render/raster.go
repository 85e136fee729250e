package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"mycase-designer/canvas"

	"github.com/anthonynsimon/bild/clone"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	ErrEmptyScene   = errors.New("scene has no size")
	ErrTextTooLarge = errors.New("text layer too large to render")
)

const (
	// maxTextOversample caps the resolution text layers are rasterized at
	// before being transformed onto the output.
	maxTextOversample = 8

	// maxLayerPixels bounds the area of a single text layer.
	maxLayerPixels = 4096 * 4096
)

// Rasterizer flattens scenes into RGBA images.
type Rasterizer struct {
	fonts *Fonts
}

func NewRasterizer(fonts *Fonts) *Rasterizer {
	if fonts == nil {
		panic("render: rasterizer needs fonts")
	}
	return &Rasterizer{fonts: fonts}
}

// OutputSize scales the scene's rendered size to width, keeping its aspect.
func OutputSize(scene canvas.Scene, width int) (int, int, float64) {
	m := float64(width) / float64(scene.Width)
	return width, int(math.Round(float64(scene.Height) * m)), m
}

// Rasterize paints the scene at the given output width. Items flagged by
// skip are left out.
func (r *Rasterizer) Rasterize(scene canvas.Scene, width int, skip func(canvas.Item) bool) (*image.RGBA, error) {
	if scene.Width <= 0 || scene.Height <= 0 || width <= 0 {
		return nil, ErrEmptyScene
	}
	w, h, m := OutputSize(scene, width)

	dc := gg.NewContext(w, h)
	if scene.Background != "" {
		dc.ClearWithColor(gg.Hex(scene.Background))
	}
	dst := clone.AsRGBA(dc.Image())
	_ = dc.Close()

	for _, item := range scene.Items {
		if skip != nil && skip(item) {
			continue
		}
		switch item.Kind {
		case canvas.KindImage, canvas.KindOverlay:
			if item.Pixels == nil {
				continue
			}
			composite(dst, item.Pixels, item.Transform, item.Origin, item.Opacity, m, 1)
		case canvas.KindText:
			if item.Text == nil {
				continue
			}
			layer, k, err := r.textLayer(item.Text, oversample(item.Transform, m))
			if err != nil {
				return nil, err
			}
			composite(dst, layer, item.Transform, item.Origin, item.Opacity, m, k)
		}
	}
	return dst, nil
}

func oversample(t canvas.Transform, m float64) float64 {
	k := math.Max(math.Abs(t.ScaleX), math.Abs(t.ScaleY)) * m
	return math.Max(1, math.Min(maxTextOversample, k))
}

// composite draws src onto dst. src is assumed to be k times larger than
// the object's intrinsic size; the origin point of the object lands on
// (Left, Top) scaled by m, with rotation and scale applied around it.
func composite(dst *image.RGBA, src image.Image, t canvas.Transform, origin canvas.Origin, opacity, m, k float64) {
	b := src.Bounds()
	if b.Empty() || opacity <= 0 {
		return
	}
	ox := origin.X * float64(b.Dx())
	oy := origin.Y * float64(b.Dy())

	rad := t.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	sx, sy := t.ScaleX*m/k, t.ScaleY*m/k

	a, bb := cos*sx, -sin*sy
	d, e := sin*sx, cos*sy
	mx := float64(b.Min.X) + ox
	my := float64(b.Min.Y) + oy
	c := t.Left*m - a*mx - bb*my
	f := t.Top*m - d*mx - e*my

	var opts *xdraw.Options
	if opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(opacity * 0xffff)})}
	}
	xdraw.BiLinear.Transform(dst, f64.Aff3{a, bb, c, d, e, f}, src, b, xdraw.Over, opts)
}

type textBox struct {
	face     text.Face
	lines    []string
	advances []float64
	w, h     int
	boxW     float64
	lh       float64
	ascent   float64
}

func (r *Rasterizer) measure(ts *canvas.TextStyle, k float64) textBox {
	size := ts.FontSize
	if size <= 0 {
		size = canvas.DefaultTextSize
	}
	face := r.fonts.Face(ts.FontFamily, size*k)
	lines := layoutLines(ts.Content, face, ts.Width*k)

	met := face.Metrics()
	b := textBox{
		face:     face,
		lines:    lines,
		advances: make([]float64, len(lines)),
		boxW:     ts.Width * k,
		lh:       met.LineHeight(),
		ascent:   met.Ascent,
	}
	for i, l := range lines {
		b.advances[i] = face.Advance(l)
		b.boxW = math.Max(b.boxW, b.advances[i])
	}
	b.w = max(int(math.Ceil(b.boxW)), 1)
	b.h = max(int(math.Ceil(b.lh*float64(len(lines)))), 1)
	return b
}

func (b textBox) pixels() float64 { return float64(b.w) * float64(b.h) }

// textLayer rasterizes text into its own box, k times the intrinsic size.
// When the oversampled layer would be too large it falls back to k = 1. It
// returns the factor actually used.
func (r *Rasterizer) textLayer(ts *canvas.TextStyle, k float64) (image.Image, float64, error) {
	b := r.measure(ts, k)
	if b.pixels() > maxLayerPixels && k > 1 {
		k = 1
		b = r.measure(ts, k)
	}
	if b.pixels() > maxLayerPixels {
		return nil, k, fmt.Errorf("%w: %dx%d", ErrTextTooLarge, b.w, b.h)
	}

	dc := gg.NewContext(b.w, b.h)
	defer dc.Close()
	dc.SetFont(b.face)
	fill := ts.Fill
	if fill == "" {
		fill = "#000000"
	}
	dc.SetHexColor(fill)
	for i, l := range b.lines {
		x := 0.0
		switch ts.Align {
		case "center":
			x = (b.boxW - b.advances[i]) / 2
		case "right":
			x = b.boxW - b.advances[i]
		}
		dc.DrawString(l, x, float64(i)*b.lh+b.ascent)
	}
	return dc.Image(), k, nil
}

func layoutLines(content string, face text.Face, maxWidth float64) []string {
	if maxWidth <= 0 {
		return strings.Split(content, "\n")
	}
	wrapped := text.WrapText(content, face, maxWidth, text.WrapWordChar)
	lines := make([]string, 0, len(wrapped))
	for _, l := range wrapped {
		lines = append(lines, l.Text)
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}
