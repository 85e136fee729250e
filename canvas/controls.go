package canvas

import (
	"fmt"
	"sort"
)

// Control names an interactive affordance attached to an object.
type Control string

const (
	ControlDelete Control = "delete"
	ControlRotate Control = "rotate"
	ControlResize Control = "resize"
)

type (
	// ControlArgs carries the target values of a rotate or resize
	// interaction, in rendered-surface units.
	ControlArgs struct {
		Angle  float64 `json:"angle"`
		ScaleX float64 `json:"scaleX"`
		ScaleY float64 `json:"scaleY"`
	}

	ControlFunc func(ed *Editor, obj Drawable, args ControlArgs) error

	// Controls is the capability table of a single object. Every
	// constructor builds a fresh table, so objects never share handlers.
	Controls map[Control]ControlFunc
)

// StandardControls returns delete, rotate and resize handlers.
func StandardControls() Controls {
	return Controls{
		ControlDelete: deleteControl,
		ControlRotate: rotateControl,
		ControlResize: resizeControl,
	}
}

// FixedControls is used for objects the product depends on, such as the
// thermos name text: they can be turned and resized but not removed.
func FixedControls() Controls {
	return Controls{
		ControlRotate: rotateControl,
		ControlResize: resizeControl,
	}
}

func (c Controls) Has(ctl Control) bool {
	_, ok := c[ctl]
	return ok
}

// Names lists the available controls in a stable order.
func (c Controls) Names() []Control {
	names := make([]Control, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func deleteControl(ed *Editor, obj Drawable, _ ControlArgs) error {
	if !ed.surface.Remove(obj) {
		return fmt.Errorf("%w: %s", ErrNotFound, obj.Props().ID)
	}
	return nil
}

func rotateControl(ed *Editor, obj Drawable, args ControlArgs) error {
	if !Finite(args.Angle) {
		return fmt.Errorf("%w: angle must be finite", ErrInvalidArgument)
	}
	return ed.RotateTo(obj.Props().ID, args.Angle)
}

func resizeControl(ed *Editor, obj Drawable, args ControlArgs) error {
	if !Finite(args.ScaleX, args.ScaleY) || args.ScaleX <= 0 || args.ScaleY <= 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidArgument)
	}
	return ed.ScaleTo(obj.Props().ID, args.ScaleX, args.ScaleY)
}
