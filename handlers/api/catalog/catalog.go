// Package catalog serves the product catalog.
package catalog

import (
	"net/http"

	"mycase-designer/catalog"

	"github.com/go-chi/render"
)

type (
	PhoneBrand struct {
		Brand  string            `json:"brand"`
		Models []string          `json:"models"`
		Labels map[string]string `json:"labels"`
	}

	ThermosCatalog struct {
		Sizes   []catalog.ThermosSize `json:"sizes"`
		Default ThermosDefaults       `json:"default"`
	}

	ThermosDefaults struct {
		Size      string `json:"size"`
		Color     string `json:"color"`
		Text      string `json:"text"`
		Font      string `json:"font"`
		TextColor string `json:"textColor"`
	}

	FontCatalog struct {
		Phone   []catalog.Font `json:"phone"`
		Thermos []catalog.Font `json:"thermos"`
	}
)

func HandlePhones() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brands := catalog.Brands()
		out := make([]PhoneBrand, 0, len(brands))
		for _, b := range brands {
			models, err := catalog.Models(b)
			if err != nil {
				continue
			}
			labels := make(map[string]string, len(models))
			for _, m := range models {
				labels[m] = catalog.ModelLabel(m)
			}
			out = append(out, PhoneBrand{Brand: b, Models: models, Labels: labels})
		}
		render.JSON(w, r, out)
	}
}

func HandleThermos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, ThermosCatalog{
			Sizes: catalog.ThermosSizes(),
			Default: ThermosDefaults{
				Size:      catalog.DefaultThermosSize,
				Color:     catalog.DefaultThermosColor,
				Text:      catalog.DefaultThermosText,
				Font:      catalog.DefaultThermosFont,
				TextColor: catalog.DefaultThermosTextColor,
			},
		})
	}
}

func HandleFonts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, FontCatalog{Phone: catalog.PhoneFonts(), Thermos: catalog.ThermosFonts()})
	}
}
