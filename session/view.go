package session

import (
	"time"

	"mycase-designer/canvas"
	"mycase-designer/catalog"
	"mycase-designer/order"
	"mycase-designer/uploads"
)

type (
	ObjectView struct {
		ID         string           `json:"id"`
		Kind       canvas.Kind      `json:"kind"`
		Transform  canvas.Transform `json:"transform"`
		Origin     canvas.Origin    `json:"origin"`
		Selectable bool             `json:"selectable"`
		Pinned     bool             `json:"pinned,omitempty"`
		Controls   []canvas.Control `json:"controls"`
		Source     string           `json:"source,omitempty"`
		Width      int              `json:"width,omitempty"`
		Height     int              `json:"height,omitempty"`
		Content    string           `json:"content,omitempty"`
		FontFamily string           `json:"fontFamily,omitempty"`
		FontSize   float64          `json:"fontSize,omitempty"`
		Fill       string           `json:"fill,omitempty"`
		Editing    bool             `json:"editing,omitempty"`
	}

	OverlayView struct {
		Source         string  `json:"source"`
		Mode           string  `json:"mode"`
		ScaleX         float64 `json:"scaleX"`
		ScaleY         float64 `json:"scaleY"`
		OriginalWidth  int     `json:"originalWidth"`
		OriginalHeight int     `json:"originalHeight"`
	}

	ProductView struct {
		Brand   string   `json:"brand,omitempty"`
		Model   string   `json:"model,omitempty"`
		Thermos *Thermos `json:"thermos,omitempty"`
		Price   int      `json:"price,omitempty"`
	}

	// View is a read-only snapshot of a session for clients.
	View struct {
		ID          string            `json:"id"`
		Kind        Kind              `json:"kind"`
		CreatedAt   time.Time         `json:"createdAt"`
		Width       int               `json:"width"`
		Height      int               `json:"height"`
		BaseWidth   int               `json:"baseWidth"`
		BaseHeight  int               `json:"baseHeight"`
		Dark        bool              `json:"dark"`
		Background  string            `json:"background,omitempty"`
		Product     ProductView       `json:"product"`
		Overlay     *OverlayView      `json:"overlay,omitempty"`
		Placeholder bool              `json:"placeholder"`
		Objects     []ObjectView      `json:"objects"`
		Selection   string            `json:"selection,omitempty"`
		Panel       canvas.StylePanel `json:"panel"`
		Uploads     []*uploads.File   `json:"uploads"`
		Customer    order.Customer    `json:"customer"`
		Order       order.Control     `json:"order"`
		OrderState  order.State       `json:"orderState"`
		OrderError  string            `json:"orderError,omitempty"`
		Renders     int               `json:"renders"`
	}
)

// View captures the current session state.
func (s *Session) View() View {
	var v View
	s.Do(func() { v = s.view() })
	v.Uploads = s.uploads.List()
	v.Order = s.flow.Control()
	v.OrderState = s.flow.State()
	if err := s.flow.LastError(); err != nil {
		v.OrderError = err.Error()
	}
	return v
}

func (s *Session) view() View {
	w, h := s.surface.Size()
	bw, bh := s.surface.BaseSize()
	v := View{
		ID:          s.ID,
		Kind:        s.Kind,
		CreatedAt:   s.CreatedAt,
		Width:       w,
		Height:      h,
		BaseWidth:   bw,
		BaseHeight:  bh,
		Dark:        s.surface.Dark(),
		Background:  s.surface.Palette().Background,
		Placeholder: s.surface.Placeholder() != nil,
		Panel:       s.editor.Panel(),
		Customer:    s.customer,
		Renders:     s.surface.Renders(),
	}

	if s.Kind == KindThermos {
		t := s.thermos
		v.Product.Thermos = &t
		v.Product.Price, _ = catalog.Price(t.Size)
	} else {
		v.Product.Brand, v.Product.Model = s.brand, s.model
	}

	if o := s.surface.Overlay(); o != nil {
		v.Overlay = &OverlayView{
			Source:         o.Source,
			Mode:           o.Mode.String(),
			ScaleX:         o.ScaleX,
			ScaleY:         o.ScaleY,
			OriginalWidth:  o.OriginalWidth,
			OriginalHeight: o.OriginalHeight,
		}
	}
	if active := s.editor.Active(); active != nil {
		v.Selection = active.Props().ID
	}

	objects := s.surface.Objects()
	v.Objects = make([]ObjectView, 0, len(objects))
	for _, obj := range objects {
		p := obj.Props()
		ov := ObjectView{
			ID:         p.ID,
			Kind:       obj.Kind(),
			Transform:  s.surface.Current(obj),
			Origin:     p.Origin,
			Selectable: p.Selectable,
			Pinned:     p.Pinned,
			Controls:   p.Controls.Names(),
		}
		switch o := obj.(type) {
		case *canvas.Image:
			ov.Source, ov.Width, ov.Height = o.Source, o.Width, o.Height
		case *canvas.Text:
			ov.Content, ov.FontFamily, ov.FontSize, ov.Fill, ov.Editing = o.Content, o.FontFamily, o.FontSize, o.Fill, o.Editing
		}
		v.Objects = append(v.Objects, ov)
	}
	return v
}
