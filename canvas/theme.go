package canvas

import (
	"fmt"
	"regexp"
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ValidColor checks that c is a #RGB, #RGBA, #RRGGBB or #RRGGBBAA color.
func ValidColor(c string) error {
	if !hexColor.MatchString(c) {
		return fmt.Errorf("%w: %q is not a hex color", ErrInvalidArgument, c)
	}
	return nil
}

// Palette holds the colors a surface uses for one theme. An empty
// Background leaves the surface transparent.
type Palette struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

var (
	PhoneLight = Palette{Text: "#000000"}
	PhoneDark  = Palette{Text: "#ffffff"}

	ThermosLight = Palette{Background: "#ffffff", Text: "#ffffff"}
	ThermosDark  = Palette{Background: "#2f2f2f", Text: "#ffffff"}
)

// SetPalettes replaces the light and dark palettes and re-renders.
func (s *Surface) SetPalettes(light, dark Palette) {
	s.light, s.dark = light, dark
	s.Render()
}

// SetDark applies a theme change signal.
func (s *Surface) SetDark(dark bool) {
	if s.isDark == dark {
		return
	}
	s.isDark = dark
	s.emit(Event{Type: EventThemeChanged})
	s.Render()
}

func (s *Surface) Dark() bool { return s.isDark }

func (s *Surface) Palette() Palette {
	if s.isDark {
		return s.dark
	}
	return s.light
}
