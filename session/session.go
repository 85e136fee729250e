// Package session bundles everything one visitor's design needs: the
// surface, its editor and scaler, the overlay manager, uploads and the order
// flow. Every mutation goes through Session.Do.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mycase-designer/canvas"
	"mycase-designer/catalog"
	"mycase-designer/core"
	"mycase-designer/order"
	"mycase-designer/overlay"
	"mycase-designer/render"
	"mycase-designer/uploads"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrUnknownKind = errors.New("unknown session kind")
	ErrWrongKind   = errors.New("operation not available for this product")
)

type Kind string

const (
	KindPhone   Kind = "phone"
	KindThermos Kind = "thermos"
)

const (
	thermosTextSize  = 75
	thermosTextAngle = 90
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPhone, "":
		return KindPhone, nil
	case KindThermos:
		return KindThermos, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

type (
	// Notice is a user-visible message about something that finished in
	// the background.
	Notice struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}

	// Notifier delivers asynchronous outcomes to whoever watches a session.
	Notifier interface {
		Notify(sessionID string, n Notice)
		ThemeChanged(sessionID string, dark bool)
	}

	// Deps are the collaborators shared by all sessions.
	Deps struct {
		Loader       overlay.Loader
		Exporter     *render.Exporter
		Sender       order.Sender
		Notifier     Notifier
		StaticBase   string
		BaseWidth    int
		BaseHeight   int
		LoadTimeout  time.Duration
		OrderTimeout time.Duration
	}

	// Thermos is the thermos configuration of a session.
	Thermos struct {
		Size      string `json:"size"`
		Color     string `json:"color"`
		Text      string `json:"text"`
		Font      string `json:"font"`
		TextColor string `json:"textColor"`
	}

	Session struct {
		ID        string
		Kind      Kind
		CreatedAt time.Time

		mu       sync.Mutex
		lastSeen atomic.Int64
		ctx      context.Context
		cancel   context.CancelFunc
		deps     Deps
		log      *logrus.Entry

		surface  *canvas.Surface
		editor   *canvas.Editor
		scaler   *canvas.Scaler
		overlays *overlay.Manager
		uploads  *uploads.Registry
		flow     *order.Flow
		widths   chan int

		brand, model string
		thermos      Thermos
		nameText     *canvas.Text
		customer     order.Customer
	}
)

func defaultThermos() Thermos {
	return Thermos{
		Size:      catalog.DefaultThermosSize,
		Color:     catalog.DefaultThermosColor,
		Text:      catalog.DefaultThermosText,
		Font:      catalog.DefaultThermosFont,
		TextColor: catalog.DefaultThermosTextColor,
	}
}

// New creates a session. Missing collaborators are a wiring bug and panic.
func New(id string, kind Kind, deps Deps) *Session {
	if deps.Loader == nil || deps.Exporter == nil || deps.Sender == nil {
		panic("session: loader, exporter and sender are required")
	}
	if deps.BaseWidth <= 0 || deps.BaseHeight <= 0 {
		deps.BaseWidth, deps.BaseHeight = 420, 780
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		deps:      deps,
		log:       logrus.WithFields(logrus.Fields{"session_id": id, "kind": kind}),
		surface:   canvas.NewSurface(deps.BaseWidth, deps.BaseHeight),
		uploads:   uploads.NewRegistry(),
		flow:      order.NewFlow(deps.Sender, deps.OrderTimeout),
		widths:    make(chan int, 1),
	}
	s.touch()
	s.editor = canvas.NewEditor(s.surface)
	s.scaler = canvas.NewScaler(s.surface)
	s.overlays = overlay.NewManager(ctx, deps.Loader, s, s.surface)
	if deps.LoadTimeout > 0 {
		s.overlays.SetTimeout(deps.LoadTimeout)
	}
	s.overlays.OnResult(s.overlayResult)
	go s.scaler.Observe(ctx, s, s.widths)

	if kind == KindThermos {
		s.Do(func() {
			s.surface.SetPalettes(canvas.ThermosLight, canvas.ThermosDark)
			s.initThermos()
		})
	}
	return s
}

// Do runs fn with exclusive access to the session.
func (s *Session) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	fn()
}

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Surface exposes the design surface; callers must hold the session via Do.
func (s *Session) Surface() *canvas.Surface { return s.surface }

// Uploads returns the upload registry. It has its own lock.
func (s *Session) Uploads() *uploads.Registry { return s.uploads }

func (s *Session) Flow() *order.Flow { return s.flow }

// WaitOverlays blocks until every overlay load has completed.
func (s *Session) WaitOverlays() { s.overlays.Wait() }

// Close abandons pending loads and stops the resize loop.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) notify(level, message string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(s.ID, Notice{Level: level, Message: message})
	}
}

func (s *Session) overlayResult(r overlay.Result) {
	if r.Status == overlay.StatusFailed {
		s.notify("error", "Nu s-a putut încărca modelul. Încearcă din nou.")
	}
}

func (s *Session) requireKind(k Kind) error {
	if s.Kind != k {
		return fmt.Errorf("%w: %s", ErrWrongKind, s.Kind)
	}
	return nil
}

// SelectPhone switches the phone mockup. An empty brand or model removes the
// overlay. The selection changes only when the mockup is applied. The
// returned channel reports the load outcome; it is nil when nothing is
// loaded.
func (s *Session) SelectPhone(brand, model string) (<-chan overlay.Result, error) {
	if err := s.requireKind(KindPhone); err != nil {
		return nil, err
	}
	if brand != "" && model != "" {
		if err := catalog.ValidatePhone(brand, model); err != nil {
			return nil, err
		}
	}

	var done <-chan overlay.Result
	s.Do(func() {
		if brand == "" || model == "" {
			s.brand, s.model = "", ""
			s.overlays.Clear()
			return
		}
		done = s.overlays.RequestThen(catalog.PhoneAsset(s.deps.StaticBase, brand, model), canvas.OverlayTop, func() {
			s.brand, s.model = brand, model
		})
	})
	s.log.WithFields(logrus.Fields{"brand": brand, "model": model}).Info("Phone model selected")
	return done, nil
}

// SelectThermos switches the thermos variant. A color the size does not
// offer falls back to the size's first color.
func (s *Session) SelectThermos(size, color string) (<-chan overlay.Result, error) {
	if err := s.requireKind(KindThermos); err != nil {
		return nil, err
	}
	resolved, err := catalog.ResolveThermosColor(size, color)
	if err != nil {
		return nil, err
	}

	var done <-chan overlay.Result
	s.Do(func() { done = s.selectThermos(size, resolved) })
	s.log.WithFields(logrus.Fields{"size": size, "color": resolved}).Info("Thermos selected")
	return done, nil
}

// selectThermos records size and color once the matching mockup is on the
// surface, so a failed load leaves the previous variant in the order.
func (s *Session) selectThermos(size, color string) <-chan overlay.Result {
	return s.overlays.RequestThen(catalog.ThermosAsset(s.deps.StaticBase, size, color), canvas.OverlayBackground, func() {
		s.thermos.Size, s.thermos.Color = size, color
	})
}

func (s *Session) initThermos() {
	s.thermos = defaultThermos()
	s.setThermosText(s.thermos.Text, s.thermos.Font, s.thermos.TextColor)
	s.selectThermos(s.thermos.Size, s.thermos.Color)
}

// SetThermosText replaces the name printed along the thermos.
func (s *Session) SetThermosText(text, font, fill string) (*canvas.Text, error) {
	if err := s.requireKind(KindThermos); err != nil {
		return nil, err
	}
	if err := canvas.ValidateText(strings.ReplaceAll(text, "\n", ""), catalog.MaxThermosTextLength); err != nil {
		return nil, err
	}
	if fill != "" {
		if err := canvas.ValidColor(fill); err != nil {
			return nil, err
		}
	}
	var t *canvas.Text
	s.Do(func() { t = s.setThermosText(text, font, fill) })
	return t, nil
}

// VerticalText stacks the letters of s one per line.
func VerticalText(s string) string {
	return strings.Join(strings.Split(strings.ReplaceAll(s, "\n", ""), ""), "\n")
}

func (s *Session) setThermosText(text, font, fill string) *canvas.Text {
	if text = strings.ReplaceAll(text, "\n", ""); text == "" {
		text = catalog.DefaultThermosText
	}
	if font == "" {
		font = catalog.DefaultThermosFont
	}
	if fill == "" {
		fill = catalog.DefaultThermosTextColor
	}
	s.thermos.Text, s.thermos.Font, s.thermos.TextColor = text, font, fill

	var t *canvas.Text
	s.surface.Batch(func() {
		if s.nameText != nil {
			s.surface.Remove(s.nameText)
		}
		t = canvas.NewText(VerticalText(text), font, fill, thermosTextSize)
		t.Controls = canvas.FixedControls()
		t.Align = "center"
		w, h := s.surface.Size()
		s.surface.Place(t, float64(w)/2.1, float64(h)/1.85, 1, canvas.OriginCenter)
		t.Layout.Angle = thermosTextAngle
		s.surface.Pin(t)
		s.nameText = t
		_ = s.editor.Select(t.ID)
	})
	return t
}

// AddPhoto places an uploaded photo on the surface.
func (s *Session) AddPhoto(fileID string) (*canvas.Image, error) {
	f, err := s.uploads.Get(fileID)
	if err != nil {
		return nil, err
	}
	var img *canvas.Image
	s.Do(func() {
		if s.Kind == KindThermos {
			img = s.editor.AddPhotoSmall(f.Name, f.Image)
			return
		}
		img = s.editor.AddPhoto(f.Name, f.Image)
	})
	s.log.WithFields(logrus.Fields{"file_id": fileID, "object_id": img.ID}).Info("Photo placed successfully")
	return img, nil
}

// RemoveUpload forgets an uploaded file. Photos already placed stay.
func (s *Session) RemoveUpload(fileID string) error {
	return s.uploads.Remove(fileID)
}

// AddText adds a text box. Content longer than canvas.MaxTextLength is
// rejected.
func (s *Session) AddText(content string) (*canvas.Text, error) {
	if err := canvas.ValidateText(content, canvas.MaxTextLength); err != nil {
		return nil, err
	}
	var t *canvas.Text
	s.Do(func() { t = s.editor.AddText(content) })
	return t, nil
}

// Resize fits the surface to a container width.
func (s *Session) Resize(containerWidth int) canvas.ResizeResult {
	var res canvas.ResizeResult
	s.Do(func() { res = s.scaler.Resize(containerWidth) })
	return res
}

// QueueResize hands a container width to the session's resize loop without
// waiting for it. A width that has not been applied yet is replaced by the
// newer one.
func (s *Session) QueueResize(containerWidth int) {
	for {
		select {
		case s.widths <- containerWidth:
			return
		default:
		}
		select {
		case <-s.widths:
		default:
		}
	}
}

// SetDark applies the theme change signal and tells watchers about it.
func (s *Session) SetDark(dark bool) {
	changed := false
	s.Do(func() {
		changed = s.surface.Dark() != dark
		s.surface.SetDark(dark)
	})
	if changed && s.deps.Notifier != nil {
		s.deps.Notifier.ThemeChanged(s.ID, dark)
	}
}

// Select makes an object active; an empty id clears the selection.
func (s *Session) Select(id string) error {
	var err error
	s.Do(func() {
		if id == "" {
			s.editor.ClearSelection()
			return
		}
		err = s.editor.Select(id)
	})
	return err
}

// SetStyle changes font and/or fill of the selected text.
func (s *Session) SetStyle(font, fill string) error {
	if fill != "" {
		if err := canvas.ValidColor(fill); err != nil {
			return err
		}
	}
	var err error
	s.Do(func() {
		s.surface.Batch(func() {
			if font != "" {
				if err = s.editor.SetFont(font); err != nil {
					return
				}
			}
			if fill != "" {
				err = s.editor.SetFill(fill)
			}
		})
	})
	return err
}

// KeyDown forwards a key press and reports whether it removed an object.
func (s *Session) KeyDown(key string) bool {
	var removed bool
	s.Do(func() { removed = s.editor.KeyDown(key) })
	return removed
}

func (s *Session) SetEditing(id string, editing bool) error {
	var err error
	s.Do(func() {
		if !editing {
			s.editor.EndEditing()
			return
		}
		err = s.editor.BeginEditing(id)
	})
	return err
}

// ObjectPatch is a partial update in rendered-surface coordinates.
type ObjectPatch struct {
	Left    *float64 `json:"left,omitempty"`
	Top     *float64 `json:"top,omitempty"`
	ScaleX  *float64 `json:"scaleX,omitempty"`
	ScaleY  *float64 `json:"scaleY,omitempty"`
	Angle   *float64 `json:"angle,omitempty"`
	Content *string  `json:"content,omitempty"`
}

func (p ObjectPatch) validate() error {
	for _, v := range []*float64{p.Left, p.Top, p.ScaleX, p.ScaleY, p.Angle} {
		if v != nil && !canvas.Finite(*v) {
			return fmt.Errorf("%w: values must be finite numbers", canvas.ErrInvalidArgument)
		}
	}
	if (p.ScaleX != nil && *p.ScaleX <= 0) || (p.ScaleY != nil && *p.ScaleY <= 0) {
		return fmt.Errorf("%w: scale must be positive", canvas.ErrInvalidArgument)
	}
	return nil
}

// UpdateObject applies a patch with a single render. An invalid patch is
// rejected before any field changes.
func (s *Session) UpdateObject(id string, p ObjectPatch) error {
	if err := p.validate(); err != nil {
		return err
	}
	var err error
	s.Do(func() {
		obj, ok := s.surface.Find(id)
		if !ok {
			err = fmt.Errorf("%w: %s", canvas.ErrNotFound, id)
			return
		}
		cur := s.surface.Current(obj)
		s.surface.Batch(func() {
			if p.Left != nil || p.Top != nil {
				left, top := cur.Left, cur.Top
				if p.Left != nil {
					left = *p.Left
				}
				if p.Top != nil {
					top = *p.Top
				}
				if err = s.editor.Move(id, left, top); err != nil {
					return
				}
			}
			if p.ScaleX != nil || p.ScaleY != nil {
				sx, sy := cur.ScaleX, cur.ScaleY
				if p.ScaleX != nil {
					sx = *p.ScaleX
				}
				if p.ScaleY != nil {
					sy = *p.ScaleY
				}
				if err = s.editor.ScaleTo(id, sx, sy); err != nil {
					return
				}
			}
			if p.Angle != nil {
				if err = s.editor.RotateTo(id, *p.Angle); err != nil {
					return
				}
			}
			if p.Content != nil {
				err = s.editor.EditText(id, *p.Content)
			}
		})
	})
	return err
}

// Invoke runs one of an object's controls.
func (s *Session) Invoke(id string, ctl canvas.Control, args canvas.ControlArgs) error {
	var err error
	s.Do(func() { err = s.editor.Invoke(id, ctl, args) })
	return err
}

func (s *Session) Gesture(kind canvas.GestureKind, phase canvas.GesturePhase, touches []canvas.Touch) error {
	var err error
	s.Do(func() { err = s.editor.Gesture(kind, phase, touches) })
	return err
}

// ClearDesign removes the user's objects and keeps the product mockup. A
// thermos gets its name text back.
func (s *Session) ClearDesign() {
	s.Do(func() {
		s.surface.Batch(func() {
			s.surface.ClearDesign()
			s.nameText = nil
			if s.Kind == KindThermos {
				s.setThermosText(s.thermos.Text, s.thermos.Font, s.thermos.TextColor)
			}
		})
	})
	s.log.Info("Design cleared")
}

// Reset brings the session back to its initial state: no design, no
// uploads, default product.
func (s *Session) Reset() {
	s.uploads.Reset()
	s.Do(func() {
		s.customer = order.Customer{}
		s.editor.ClearSelection()
		s.surface.Batch(func() {
			s.overlays.Clear()
			s.surface.Clear()
			s.nameText = nil
			s.brand, s.model = "", ""
			if s.Kind == KindThermos {
				s.initThermos()
			}
		})
	})
	s.log.Info("Session reset")
}

// Export renders the design to PNG. A zero width exports at the base
// resolution.
func (s *Session) Export(ctx context.Context, opts render.Options) ([]byte, error) {
	if opts.Width <= 0 {
		opts.Width = s.deps.BaseWidth
	}
	return s.deps.Exporter.ExportPNG(ctx, s, opts)
}

// ProductLabel names the current product, for example "phone:samsung/s24"
// or "thermos:750/black-matte". It is empty when no phone is chosen.
func (s *Session) ProductLabel() string {
	var label string
	s.Do(func() { label = s.productLabel() })
	return label
}

func (s *Session) productLabel() string {
	if s.Kind == KindThermos {
		return fmt.Sprintf("thermos:%s/%s", s.thermos.Size, s.thermos.Color)
	}
	if s.brand == "" || s.model == "" {
		return ""
	}
	return fmt.Sprintf("phone:%s/%s", s.brand, s.model)
}

// SaveDesign captures the design, mockup included, as a design ready to be
// stored. The session itself is not changed.
func (s *Session) SaveDesign(ctx context.Context, name string) (*core.SavedDesign, error) {
	img, err := s.Export(ctx, render.Options{IncludeOverlay: true})
	if err != nil {
		return nil, err
	}
	view := s.View()
	state, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "Design " + time.Now().Format("2006-01-02 15:04")
	}
	return &core.SavedDesign{
		SessionID: s.ID,
		Name:      name,
		Product:   s.ProductLabel(),
		Image:     img,
		State:     state,
	}, nil
}

// product returns what would be ordered, or nil when no mockup is shown.
func (s *Session) product() order.Product {
	if s.surface.Overlay() == nil {
		return nil
	}
	if s.Kind == KindThermos {
		p := order.ThermosProduct{Size: s.thermos.Size, Color: s.thermos.Color}
		if s.nameText != nil {
			p.Text, p.Font, p.TextColor = s.nameText.Content, s.nameText.FontFamily, s.nameText.Fill
		}
		return p
	}
	if s.brand == "" || s.model == "" {
		return nil
	}
	return order.PhoneProduct{Brand: s.brand, Model: s.model}
}

// SubmitOrder sends the design with the customer's details. On success the
// session is reset; on failure everything stays as it was.
func (s *Session) SubmitOrder(ctx context.Context, c order.Customer) error {
	var product order.Product
	s.Do(func() {
		s.customer = c
		product = s.product()
	})

	files := s.uploads.List()
	attachments := make([]order.Attachment, 0, len(files))
	for _, f := range files {
		attachments = append(attachments, order.Attachment{Name: f.Name, ContentType: f.ContentType, Data: f.Data})
	}

	err := s.flow.Submit(ctx, order.Request{
		Customer: c,
		Product:  product,
		Files:    attachments,
		Design: func(ctx context.Context) ([]byte, error) {
			return s.Export(ctx, render.Options{IncludeOverlay: true})
		},
		OnSuccess: s.Reset,
	})
	switch {
	case err == nil:
		s.notify("success", "Comandă primită! Te vom contacta în curând.")
	case errors.Is(err, order.ErrNoProduct):
		if s.Kind == KindThermos {
			s.notify("error", "Alege termosul mai întâi!")
		} else {
			s.notify("error", "Creează designul mai întâi!")
		}
	case errors.Is(err, order.ErrInvalidCustomer), errors.Is(err, order.ErrSubmitInProgress):
	default:
		s.notify("error", "Eroare la trimitere. Încearcă din nou.")
	}
	return err
}
