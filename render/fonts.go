package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
)

// Fonts maps CSS-like font family lists to parsed font sources.
type Fonts struct {
	mu       sync.RWMutex
	families map[string]*text.FontSource
	generic  map[string]*text.FontSource
	fallback *text.FontSource
}

// builtin families are served by the Go fonts until a real TTF is loaded
// from the font directory.
var builtin = map[string]string{
	"poppins":      "regular",
	"inter":        "regular",
	"arial":        "regular",
	"exo 2":        "regular",
	"advent pro":   "regular",
	"roboto slab":  "medium",
	"montserrat":   "bold",
	"oswald":       "bold",
	"russo one":    "bold",
	"pacifico":     "italic",
	"caveat":       "italic",
	"marck script": "italic",
	"great vibes":  "italic",
	"rampart one":  "bolditalic",
	"rubik dirt":   "bolditalic",
	"amatic sc":    "smallcaps",
}

func NewFonts() (*Fonts, error) {
	ttfs := map[string][]byte{
		"regular":    goregular.TTF,
		"medium":     gomedium.TTF,
		"bold":       gobold.TTF,
		"italic":     goitalic.TTF,
		"bolditalic": gobolditalic.TTF,
		"smallcaps":  gosmallcaps.TTF,
		"mono":       gomono.TTF,
	}
	sources := make(map[string]*text.FontSource, len(ttfs))
	for name, data := range ttfs {
		src, err := text.NewFontSource(data)
		if err != nil {
			return nil, fmt.Errorf("parse built-in font %s: %w", name, err)
		}
		sources[name] = src
	}

	f := &Fonts{
		families: make(map[string]*text.FontSource, len(builtin)),
		generic: map[string]*text.FontSource{
			"sans-serif": sources["regular"],
			"serif":      sources["medium"],
			"cursive":    sources["italic"],
			"monospace":  sources["mono"],
		},
		fallback: sources["regular"],
	}
	for family, style := range builtin {
		f.families[family] = sources[style]
	}
	return f, nil
}

// LoadDir registers every .ttf/.otf file in dir under a family derived from
// its file name ("Great_Vibes-Regular.ttf" becomes "great vibes").
func (f *Fonts) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := text.NewFontSourceFromFile(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("Skipping unreadable font")
			continue
		}
		family := familyFromFile(entry.Name())
		f.mu.Lock()
		f.families[family] = src
		f.mu.Unlock()
		loaded++
		logrus.WithFields(logrus.Fields{"family": family, "path": path}).Debug("Font loaded")
	}
	return loaded, nil
}

func familyFromFile(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.Index(name, "-"); i > 0 {
		name = name[:i]
	}
	return normalizeFamily(strings.ReplaceAll(name, "_", " "))
}

func normalizeFamily(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Source resolves a family list such as "Roboto Slab, serif". The first
// known family wins, then the first generic family, then the fallback.
func (f *Fonts) Source(families string) *text.FontSource {
	f.mu.RLock()
	defer f.mu.RUnlock()

	parts := strings.Split(families, ",")
	for _, p := range parts {
		if src, ok := f.families[normalizeFamily(p)]; ok {
			return src
		}
	}
	for _, p := range parts {
		if src, ok := f.generic[normalizeFamily(p)]; ok {
			return src
		}
	}
	return f.fallback
}

// Face returns a face of the resolved family at size points.
func (f *Fonts) Face(families string, size float64) text.Face {
	return f.Source(families).Face(size)
}
