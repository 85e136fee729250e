package canvas

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotText         = errors.New("selected object is not text")
)

const (
	PlaceholderText     = "Alege modelul telefonului"
	PlaceholderFontSize = 24
	PlaceholderFill     = "#aaa"
	PlaceholderFont     = "Poppins, sans-serif"
)

type EventType int

const (
	EventRendered EventType = iota
	EventAdded
	EventRemoved
	EventCleared
	EventOverlayChanged
	EventResized
	EventThemeChanged
)

type (
	Event struct {
		Type   EventType
		Object Drawable
	}

	Listener func(Event)

	// Surface is the design area. It is not safe for concurrent use; the
	// owning session serializes every call.
	Surface struct {
		baseW, baseH  int
		width, height int

		objects     []Drawable
		overlay     *Overlay
		placeholder *Text

		light, dark Palette
		isDark      bool

		renders   int
		batching  int
		pending   bool
		listeners []Listener
	}
)

// NewSurface creates an empty surface at the given logical resolution with
// the placeholder text in place. A non-positive resolution is a setup bug.
func NewSurface(baseW, baseH int) *Surface {
	if baseW <= 0 || baseH <= 0 {
		panic(fmt.Sprintf("canvas: invalid base resolution %dx%d", baseW, baseH))
	}
	s := &Surface{
		baseW:  baseW,
		baseH:  baseH,
		width:  baseW,
		height: baseH,
		light:  PhoneLight,
		dark:   PhoneDark,
	}
	s.placeholder = s.newPlaceholder()
	return s
}

func (s *Surface) newPlaceholder() *Text {
	t := &Text{
		Base: Base{
			ID:      "placeholder",
			Layout:  Transform{Left: float64(s.baseW) / 2, Top: float64(s.baseH) / 2, ScaleX: 1, ScaleY: 1},
			Origin:  OriginCenter,
			Opacity: 1,
		},
		Content:    PlaceholderText,
		FontFamily: PlaceholderFont,
		Fill:       PlaceholderFill,
		FontSize:   PlaceholderFontSize,
		Align:      "center",
	}
	return t
}

// Subscribe registers a listener for surface events.
func (s *Surface) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Surface) emit(e Event) {
	for _, l := range s.listeners {
		l(e)
	}
}

// Render requests a repaint. Inside Batch the repaint is deferred until the
// outermost batch returns.
func (s *Surface) Render() {
	if s.batching > 0 {
		s.pending = true
		return
	}
	s.renders++
	s.emit(Event{Type: EventRendered})
}

// Renders returns how many render passes have completed.
func (s *Surface) Renders() int { return s.renders }

// Batch runs fn and emits at most one render for all mutations in it.
func (s *Surface) Batch(fn func()) {
	s.batching++
	defer func() {
		s.batching--
		if s.batching == 0 && s.pending {
			s.pending = false
			s.Render()
		}
	}()
	fn()
}

func (s *Surface) BaseSize() (int, int) { return s.baseW, s.baseH }
func (s *Surface) Size() (int, int)     { return s.width, s.height }

// Objects returns the user objects in z-order, bottom first.
func (s *Surface) Objects() []Drawable {
	out := make([]Drawable, len(s.objects))
	copy(out, s.objects)
	return out
}

func (s *Surface) Overlay() *Overlay { return s.overlay }

// Placeholder returns the placeholder text, or nil when it is not shown.
func (s *Surface) Placeholder() *Text { return s.placeholder }

// Find looks up a user object by ID.
func (s *Surface) Find(id string) (Drawable, bool) {
	for _, obj := range s.objects {
		if obj.Props().ID == id {
			return obj, true
		}
	}
	return nil, false
}

// Layers returns every displayed drawable in paint order.
func (s *Surface) Layers() []Drawable {
	layers := make([]Drawable, 0, len(s.objects)+2)
	if s.overlay != nil && !s.overlay.Hidden && s.overlay.Mode == OverlayBackground {
		layers = append(layers, s.overlay)
	}
	layers = append(layers, s.objects...)
	if s.placeholder != nil {
		layers = append(layers, s.placeholder)
	}
	if s.overlay != nil && !s.overlay.Hidden && s.overlay.Mode == OverlayTop {
		layers = append(layers, s.overlay)
	}
	return layers
}

// Len counts displayed drawables, the overlay and placeholder included.
func (s *Surface) Len() int { return len(s.Layers()) }

// Add puts obj at the top of the unpinned objects, or at the very top when it
// is pinned.
func (s *Surface) Add(obj Drawable) {
	if obj == nil {
		return
	}
	if _, exists := s.Find(obj.Props().ID); exists {
		return
	}
	s.placeholder = nil
	if obj.Props().Pinned {
		s.objects = append(s.objects, obj)
	} else {
		at := len(s.objects)
		for i, o := range s.objects {
			if o.Props().Pinned {
				at = i
				break
			}
		}
		s.objects = append(s.objects, nil)
		copy(s.objects[at+1:], s.objects[at:])
		s.objects[at] = obj
	}
	s.emit(Event{Type: EventAdded, Object: obj})
	s.Render()
}

// Pin marks obj as pinned and adds it above everything else.
func (s *Surface) Pin(obj Drawable) {
	obj.Props().Pinned = true
	s.Add(obj)
}

// Remove deletes obj by identity. It reports whether obj was on the surface.
func (s *Surface) Remove(obj Drawable) bool {
	idx := -1
	for i, o := range s.objects {
		if Is(o, obj) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.objects = append(s.objects[:idx], s.objects[idx+1:]...)
	s.emit(Event{Type: EventRemoved, Object: obj})
	if len(s.objects) == 0 && s.overlay == nil {
		s.placeholder = s.newPlaceholder()
	}
	s.Render()
	return true
}

// Clear removes every object and the overlay and restores the placeholder.
// Callers installing a new overlay right away should do both in one Batch.
func (s *Surface) Clear() {
	s.Batch(func() {
		s.dropObjects()
		s.overlay = nil
		s.placeholder = s.newPlaceholder()
		s.emit(Event{Type: EventCleared})
		s.Render()
	})
}

// ClearDesign removes the user objects and keeps the overlay. The
// placeholder comes back only when there is no overlay.
func (s *Surface) ClearDesign() {
	s.Batch(func() {
		s.dropObjects()
		if s.overlay == nil {
			s.placeholder = s.newPlaceholder()
		}
		s.emit(Event{Type: EventCleared})
		s.Render()
	})
}

func (s *Surface) dropObjects() {
	removed := s.objects
	s.objects = nil
	for _, obj := range removed {
		s.emit(Event{Type: EventRemoved, Object: obj})
	}
}

// SetOverlay installs o, replacing any previous overlay, and stretches it to
// the current rendered size.
func (s *Surface) SetOverlay(o *Overlay) {
	o.Selectable = false
	o.Controls = nil
	o.Layout.Left, o.Layout.Top = 0, 0
	o.Origin = OriginTopLeft
	o.Fit(s.width, s.height)
	s.overlay = o
	s.placeholder = nil
	s.emit(Event{Type: EventOverlayChanged, Object: o})
	s.Render()
}

// RemoveOverlay drops the overlay. The placeholder is restored when no user
// objects remain.
func (s *Surface) RemoveOverlay() {
	if s.overlay == nil {
		return
	}
	s.overlay = nil
	if len(s.objects) == 0 {
		s.placeholder = s.newPlaceholder()
	}
	s.emit(Event{Type: EventOverlayChanged})
	s.Render()
}

// DetachOverlay hides the overlay and returns a func that restores its
// previous visibility. Both steps render.
func (s *Surface) DetachOverlay() func() {
	o := s.overlay
	if o == nil {
		return func() {}
	}
	was := o.Hidden
	o.Hidden = true
	s.Render()
	return func() {
		o.Hidden = was
		s.Render()
	}
}

// Resize sets the rendered size. Object transforms are projected from their
// base-resolution layout, the placeholder is recentered and the overlay is
// refit from its original dimensions, with a single render.
func (s *Surface) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.Batch(func() {
		s.width, s.height = width, height
		if s.placeholder != nil {
			s.placeholder.Layout.Left = float64(s.baseW) / 2
			s.placeholder.Layout.Top = float64(s.baseH) / 2
		}
		if s.overlay != nil {
			s.overlay.Fit(width, height)
		}
		s.emit(Event{Type: EventResized})
		s.Render()
	})
}

func (s *Surface) ratio() (float64, float64) {
	return float64(s.width) / float64(s.baseW), float64(s.height) / float64(s.baseH)
}

// Current returns obj's transform in rendered-surface coordinates.
func (s *Surface) Current(obj Drawable) Transform {
	if o, ok := obj.(*Overlay); ok {
		return Transform{ScaleX: o.ScaleX, ScaleY: o.ScaleY}
	}
	kx, ky := s.ratio()
	l := obj.Props().Layout
	return Transform{
		Left:   l.Left * kx,
		Top:    l.Top * ky,
		ScaleX: l.ScaleX * kx,
		ScaleY: l.ScaleY * ky,
		Angle:  l.Angle,
	}
}

// SetCurrent stores a transform given in rendered-surface coordinates.
func (s *Surface) SetCurrent(obj Drawable, t Transform) {
	kx, ky := s.ratio()
	obj.Props().Layout = Transform{
		Left:   t.Left / kx,
		Top:    t.Top / ky,
		ScaleX: t.ScaleX / kx,
		ScaleY: t.ScaleY / ky,
		Angle:  normalizeAngle(t.Angle),
	}
	s.Render()
}

// Place positions obj in rendered-surface coordinates without rendering.
func (s *Surface) Place(obj Drawable, left, top, scale float64, origin Origin) {
	kx, ky := s.ratio()
	p := obj.Props()
	p.Origin = origin
	p.Layout = Transform{
		Left:   left / kx,
		Top:    top / ky,
		ScaleX: scale / kx,
		ScaleY: scale / ky,
		Angle:  p.Layout.Angle,
	}
}

// normalizeAngle maps a into [0, 360). Non-finite angles become 0.
func normalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
