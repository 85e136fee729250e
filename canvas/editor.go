package canvas

import (
	"errors"
	"fmt"
	"image"
	"math"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotSelectable       = errors.New("object is not selectable")
	ErrControlUnavailable  = errors.New("control not available for object")
	ErrNoSelection         = errors.New("no active object")
	ErrNotEditable         = errors.New("text is not editable")
	ErrGestureNeedsTouches = errors.New("gesture needs two touches")
)

const (
	DefaultTextContent = "Scrie textul aici"
	DefaultTextFont    = "Poppins, sans-serif"
	DefaultTextSize    = 40
	DefaultTextWidth   = 300
	DefaultTextTop     = 150

	// MaxTextLength bounds the content of a text object, in characters.
	MaxTextLength = 200

	photoFill     = 0.85
	smallPhotoMax = 200
)

type (
	SelectionChange string

	// StylePanel mirrors the side panel used to edit the selected text.
	StylePanel struct {
		Visible    bool   `json:"visible"`
		FontFamily string `json:"fontFamily,omitempty"`
		Fill       string `json:"fill,omitempty"`
	}

	SelectionListener func(change SelectionChange, active Drawable)

	// Editor owns the selection state and mediates every interactive
	// change to the surface's objects. The selection is a reference into the
	// surface, never a copy.
	Editor struct {
		surface   *Surface
		active    Drawable
		panel     StylePanel
		gesture   GestureTracker
		listeners []SelectionListener
	}
)

const (
	SelectionCreated SelectionChange = "created"
	SelectionUpdated SelectionChange = "updated"
	SelectionCleared SelectionChange = "cleared"
)

func NewEditor(surface *Surface) *Editor {
	ed := &Editor{surface: surface}
	surface.Subscribe(ed.onSurfaceEvent)
	return ed
}

func (ed *Editor) onSurfaceEvent(e Event) {
	if e.Type == EventRemoved && Is(e.Object, ed.active) {
		ed.ClearSelection()
	}
}

// OnSelection registers a listener for selection changes.
func (ed *Editor) OnSelection(l SelectionListener) {
	ed.listeners = append(ed.listeners, l)
}

func (ed *Editor) Surface() *Surface { return ed.surface }
func (ed *Editor) Active() Drawable  { return ed.active }
func (ed *Editor) Panel() StylePanel { return ed.panel }

// ActiveText returns the selected object when it is text.
func (ed *Editor) ActiveText() (*Text, bool) {
	t, ok := ed.active.(*Text)
	return t, ok
}

func (ed *Editor) lookup(id string) (Drawable, error) {
	obj, ok := ed.surface.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return obj, nil
}

// Select makes the object with the given id active.
func (ed *Editor) Select(id string) error {
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	if !obj.Props().Selectable {
		return fmt.Errorf("%w: %s", ErrNotSelectable, id)
	}
	if Is(obj, ed.active) {
		return nil
	}
	change := SelectionUpdated
	if ed.active == nil {
		change = SelectionCreated
	}
	ed.endEditing()
	ed.active = obj
	ed.syncPanel()
	ed.notify(change)
	return nil
}

// ClearSelection drops the active object and hides the style panel.
func (ed *Editor) ClearSelection() {
	if ed.active == nil {
		return
	}
	ed.endEditing()
	ed.active = nil
	ed.gesture.Reset()
	ed.syncPanel()
	ed.notify(SelectionCleared)
}

func (ed *Editor) notify(change SelectionChange) {
	for _, l := range ed.listeners {
		l(change, ed.active)
	}
}

func (ed *Editor) syncPanel() {
	t, ok := ed.ActiveText()
	if !ok {
		ed.panel = StylePanel{}
		return
	}
	font := t.FontFamily
	if font == "" {
		font = DefaultTextFont
	}
	ed.panel = StylePanel{Visible: true, FontFamily: font, Fill: t.Fill}
}

// SetFont changes the font family of the selected text.
func (ed *Editor) SetFont(family string) error {
	t, ok := ed.ActiveText()
	if !ok {
		return ErrNotText
	}
	t.FontFamily = family
	ed.syncPanel()
	ed.surface.Render()
	return nil
}

// SetFill changes the fill color of the selected text.
func (ed *Editor) SetFill(color string) error {
	if err := ValidColor(color); err != nil {
		return err
	}
	t, ok := ed.ActiveText()
	if !ok {
		return ErrNotText
	}
	t.Fill = color
	ed.syncPanel()
	ed.surface.Render()
	return nil
}

// KeyDown handles the global keyboard shortcut. Delete and Backspace remove
// the active object unless a text is being edited. It reports whether an
// object was removed.
func (ed *Editor) KeyDown(key string) bool {
	if key != "Delete" && key != "Backspace" {
		return false
	}
	obj := ed.active
	if obj == nil {
		return false
	}
	if t, ok := obj.(*Text); ok && t.Editing {
		return false
	}
	if !obj.Props().Controls.Has(ControlDelete) {
		return false
	}
	removed := ed.surface.Remove(obj)
	if removed {
		logrus.WithField("object_id", obj.Props().ID).Debug("Object removed by keyboard")
	}
	return removed
}

// BeginEditing selects a text object and enters edit mode.
func (ed *Editor) BeginEditing(id string) error {
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	t, ok := obj.(*Text)
	if !ok {
		return ErrNotText
	}
	if !t.Editable {
		return fmt.Errorf("%w: %s", ErrNotEditable, id)
	}
	if err := ed.Select(id); err != nil {
		return err
	}
	t.Editing = true
	return nil
}

// EndEditing leaves edit mode.
func (ed *Editor) EndEditing() {
	ed.endEditing()
}

func (ed *Editor) endEditing() {
	if t, ok := ed.ActiveText(); ok {
		t.Editing = false
	}
}

// ValidateText rejects content longer than limit characters.
func ValidateText(content string, limit int) error {
	if n := utf8.RuneCountInString(content); n > limit {
		return fmt.Errorf("%w: text has %d characters, at most %d allowed", ErrInvalidArgument, n, limit)
	}
	return nil
}

func truncateText(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	return string([]rune(content)[:limit])
}

// EditText replaces a text object's content.
func (ed *Editor) EditText(id, content string) error {
	if err := ValidateText(content, MaxTextLength); err != nil {
		return err
	}
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	t, ok := obj.(*Text)
	if !ok {
		return ErrNotText
	}
	if !t.Editable {
		return fmt.Errorf("%w: %s", ErrNotEditable, id)
	}
	t.Content = content
	ed.surface.Render()
	return nil
}

// Invoke runs one of the object's control handlers.
func (ed *Editor) Invoke(id string, ctl Control, args ControlArgs) error {
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	handler, ok := obj.Props().Controls[ctl]
	if !ok || handler == nil {
		return fmt.Errorf("%w: %s on %s", ErrControlUnavailable, ctl, id)
	}
	return handler(ed, obj, args)
}

// Finite reports whether every value is a usable coordinate.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Move drags an object to a position in rendered-surface coordinates.
func (ed *Editor) Move(id string, left, top float64) error {
	if !Finite(left, top) {
		return fmt.Errorf("%w: position must be finite", ErrInvalidArgument)
	}
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	t := ed.surface.Current(obj)
	t.Left, t.Top = left, top
	ed.surface.SetCurrent(obj, t)
	return nil
}

// ScaleTo sets an object's rendered scale.
func (ed *Editor) ScaleTo(id string, sx, sy float64) error {
	if !Finite(sx, sy) || sx <= 0 || sy <= 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidArgument)
	}
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	t := ed.surface.Current(obj)
	t.ScaleX, t.ScaleY = sx, sy
	ed.surface.SetCurrent(obj, t)
	return nil
}

// RotateTo sets an object's angle in degrees.
func (ed *Editor) RotateTo(id string, angle float64) error {
	if !Finite(angle) {
		return fmt.Errorf("%w: angle must be finite", ErrInvalidArgument)
	}
	obj, err := ed.lookup(id)
	if err != nil {
		return err
	}
	t := ed.surface.Current(obj)
	t.Angle = angle
	ed.surface.SetCurrent(obj, t)
	return nil
}

// Gesture applies a two-finger gesture event to the active object.
func (ed *Editor) Gesture(kind GestureKind, phase GesturePhase, touches []Touch) error {
	if phase == PhaseEnd {
		ed.gesture.Reset()
		return nil
	}
	if len(touches) < 2 {
		ed.gesture.Reset()
		return ErrGestureNeedsTouches
	}
	if ed.active == nil {
		return ErrNoSelection
	}
	if phase == PhaseStart {
		ed.gesture.Reset()
	}
	scale, rotation, ok := ed.gesture.Track(kind, touches[0], touches[1])
	if !ok {
		return nil
	}
	t := ed.surface.Current(ed.active)
	t.ScaleX *= scale
	t.ScaleY *= scale
	t.Angle += rotation
	if !Finite(t.ScaleX, t.ScaleY, t.Angle) {
		ed.gesture.Reset()
		return fmt.Errorf("%w: gesture produced a non-finite transform", ErrInvalidArgument)
	}
	ed.surface.SetCurrent(ed.active, t)
	return nil
}

// AddText places a new text box near the top of the surface and selects it.
// Content past MaxTextLength is cut.
func (ed *Editor) AddText(content string) *Text {
	if content == "" {
		content = DefaultTextContent
	}
	content = truncateText(content, MaxTextLength)
	t := NewText(content, DefaultTextFont, ed.surface.Palette().Text, DefaultTextSize)
	t.Width = DefaultTextWidth
	t.Align = "center"
	w, _ := ed.surface.Size()
	ed.surface.Place(t, float64(w)/2, DefaultTextTop, 1, OriginTop)
	ed.surface.Add(t)
	_ = ed.Select(t.ID)
	return t
}

// AddPhoto fits an image into 85% of the surface, centers it and selects it.
func (ed *Editor) AddPhoto(source string, pixels image.Image) *Image {
	w, h := ed.surface.Size()
	img := NewImage(source, pixels)
	scale := 1.0
	if img.Width > 0 && img.Height > 0 {
		scale = math.Min(photoFill*float64(w)/float64(img.Width), photoFill*float64(h)/float64(img.Height))
	}
	return ed.placePhoto(img, scale)
}

// AddPhotoSmall adds an image no larger than 200px on either side and
// never upscales it.
func (ed *Editor) AddPhotoSmall(source string, pixels image.Image) *Image {
	img := NewImage(source, pixels)
	scale := 1.0
	if img.Width > 0 && img.Height > 0 {
		scale = math.Min(math.Min(smallPhotoMax/float64(img.Width), smallPhotoMax/float64(img.Height)), 1)
	}
	return ed.placePhoto(img, scale)
}

func (ed *Editor) placePhoto(img *Image, scale float64) *Image {
	w, h := ed.surface.Size()
	ed.surface.Place(img, float64(w)/2, float64(h)/2, scale, OriginCenter)
	ed.surface.Add(img)
	_ = ed.Select(img.ID)
	return img
}
