package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

var ErrDesignNotFound = errors.New("design not found")

type (
	// ReadyDesign is a finished case design sold as is.
	ReadyDesign struct {
		ID        int64     `json:"id"`
		Slug      string    `json:"slug"`
		Title     string    `json:"title"`
		Category  string    `json:"category,omitempty"`
		Brand     string    `json:"brand,omitempty"`
		ImageURL  string    `json:"imageUrl"`
		Active    bool      `json:"active"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// GalleryPage is one filtered listing of the gallery. Brands are only
	// listed once a category is chosen.
	GalleryPage struct {
		Items          []ReadyDesign `json:"items"`
		Categories     []string      `json:"categories"`
		Brands         []string      `json:"brands"`
		ActiveCategory string        `json:"activeCategory,omitempty"`
		ActiveBrand    string        `json:"activeBrand,omitempty"`
	}

	// Gallery holds the ready designs. It is read-only once built.
	Gallery struct {
		designs []ReadyDesign
	}
)

// NewGallery keeps the active designs, newest first.
func NewGallery(designs []ReadyDesign) *Gallery {
	g := &Gallery{}
	for _, d := range designs {
		if d.Active {
			g.designs = append(g.designs, d)
		}
	}
	sort.SliceStable(g.designs, func(i, j int) bool {
		a, b := g.designs[i], g.designs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return g
}

// LoadGallery reads a JSON array of designs. An empty path gives an empty
// gallery.
func LoadGallery(path string) (*Gallery, error) {
	if path == "" {
		return NewGallery(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read designs: %w", err)
	}
	var designs []ReadyDesign
	if err := json.Unmarshal(data, &designs); err != nil {
		return nil, fmt.Errorf("parse designs %s: %w", path, err)
	}
	seen := make(map[string]bool, len(designs))
	for _, d := range designs {
		if d.Slug == "" || seen[d.Slug] {
			return nil, fmt.Errorf("parse designs %s: missing or duplicate slug %q", path, d.Slug)
		}
		seen[d.Slug] = true
	}
	return NewGallery(designs), nil
}

func (g *Gallery) Len() int { return len(g.designs) }

// List filters by category and, within it, by brand. A brand the category
// does not carry is ignored.
func (g *Gallery) List(category, brand string) GalleryPage {
	category, brand = strings.TrimSpace(category), strings.TrimSpace(brand)
	page := GalleryPage{
		Items:      []ReadyDesign{},
		Categories: distinct(g.designs, func(d ReadyDesign) string { return d.Category }),
		Brands:     []string{},
	}

	if category != "" {
		page.ActiveCategory = category
		var inCategory []ReadyDesign
		for _, d := range g.designs {
			if d.Category == category {
				inCategory = append(inCategory, d)
			}
		}
		page.Brands = distinct(inCategory, func(d ReadyDesign) string { return d.Brand })
		for _, b := range page.Brands {
			if b == brand {
				page.ActiveBrand = brand
			}
		}
	}

	for _, d := range g.designs {
		if category != "" && d.Category != category {
			continue
		}
		if page.ActiveBrand != "" && d.Brand != page.ActiveBrand {
			continue
		}
		page.Items = append(page.Items, d)
	}
	return page
}

func (g *Gallery) BySlug(slug string) (ReadyDesign, error) {
	for _, d := range g.designs {
		if d.Slug == slug {
			return d, nil
		}
	}
	return ReadyDesign{}, fmt.Errorf("%w: %q", ErrDesignNotFound, slug)
}

func (g *Gallery) ByID(id int64) (ReadyDesign, error) {
	for _, d := range g.designs {
		if d.ID == id {
			return d, nil
		}
	}
	return ReadyDesign{}, fmt.Errorf("%w: %d", ErrDesignNotFound, id)
}

func distinct(designs []ReadyDesign, key func(ReadyDesign) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, d := range designs {
		if k := key(d); k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
