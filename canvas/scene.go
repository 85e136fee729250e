package canvas

import "image"

type (
	// TextStyle is the text-specific part of a scene item.
	TextStyle struct {
		Content    string
		FontFamily string
		Fill       string
		FontSize   float64
		Width      float64
		Align      string
	}

	// Item is an immutable copy of one displayed drawable, in
	// rendered-surface coordinates.
	Item struct {
		ID          string
		Kind        Kind
		Transform   Transform
		Origin      Origin
		Opacity     float64
		Width       int
		Height      int
		Pixels      image.Image
		Text        *TextStyle
		Placeholder bool
	}

	// Scene is a render pass snapshot. It shares decoded pixel buffers with
	// the surface but no mutable object state, so it can be rasterized
	// without holding the session.
	Scene struct {
		Width      int
		Height     int
		Background string
		Items      []Item
		Render     int
	}
)

// Scene captures the surface as it looks after the latest render pass.
func (s *Surface) Scene() Scene {
	layers := s.Layers()
	scene := Scene{
		Width:      s.width,
		Height:     s.height,
		Background: s.Palette().Background,
		Items:      make([]Item, 0, len(layers)),
		Render:     s.renders,
	}
	for _, obj := range layers {
		p := obj.Props()
		item := Item{
			ID:        p.ID,
			Kind:      obj.Kind(),
			Transform: s.Current(obj),
			Origin:    p.Origin,
			Opacity:   p.Opacity,
		}
		switch o := obj.(type) {
		case *Image:
			item.Width, item.Height, item.Pixels = o.Width, o.Height, o.Pixels
		case *Overlay:
			item.Width, item.Height, item.Pixels = o.OriginalWidth, o.OriginalHeight, o.Pixels
		case *Text:
			item.Text = &TextStyle{
				Content:    o.Content,
				FontFamily: o.FontFamily,
				Fill:       o.Fill,
				FontSize:   o.FontSize,
				Width:      o.Width,
				Align:      o.Align,
			}
			item.Placeholder = o == s.placeholder
		}
		scene.Items = append(scene.Items, item)
	}
	return scene
}
