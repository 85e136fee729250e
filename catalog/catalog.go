// Package catalog holds the products offered by the storefront and resolves
// their mockup asset paths.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownBrand = errors.New("unknown brand")
	ErrUnknownModel = errors.New("unknown model")
	ErrUnknownSize  = errors.New("unknown thermos size")
)

type (
	Color struct {
		Key string `json:"key"`
		Hex string `json:"hex"`
	}

	Font struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}

	ThermosSize struct {
		Size   string  `json:"size"`
		Price  int     `json:"price"`
		Colors []Color `json:"colors"`
	}
)

const (
	DefaultThermosSize      = "750"
	DefaultThermosColor     = "black-matte"
	DefaultThermosText      = "Numele tau"
	DefaultThermosTextColor = "#ffffff"
	DefaultThermosFont      = "Montserrat, sans-serif"

	// MaxThermosTextLength bounds the name printed on a thermos and the
	// personal text of a ready design order.
	MaxThermosTextLength = 30
)

var phoneModels = map[string][]string{
	"apple": {
		"iphone_16_Pro_Max", "iphone_16_Pro", "iphone_16_Plus", "iphone_16",
		"iphone_15_Pro_Max", "iphone_15_Pro", "iphone_15_Plus", "iphone_15",
		"iphone_14_Pro_Max", "iphone_14_Pro", "iphone_14_Plus", "iphone_14",
		"iphone_13_Pro_Max", "iphone_13_Pro", "iphone_13_Mini", "iphone_13",
		"iphone_12_Pro_Max", "iphone_12_Pro", "iphone_12_Mini", "iphone_12",
		"iphone_SE_3",
		"iphone_11_Pro_Max", "iphone_11_Pro", "iphone_11",
		"iphone_Xs_Max", "iphone_Xs", "iphone_Xr", "iphone_X",
		"iphone_8_Plus", "iphone_8", "iphone_7_Plus", "iphone_7",
	},
	"samsung": {
		"s25_ultra", "s25_plus", "s25",
		"s24_ultra", "s24_plus", "s24",
		"s23_ultra", "s23_plus", "s23",
		"s22_ultra", "s22_plus", "s22",
		"s21_ultra", "s21_plus", "s21",
		"s20_ultra", "s20_plus", "s20",
		"s10_5g", "s10_plus", "s10", "s10e",
		"s9_plus", "s9",
		"s8_plus", "s8",
	},
	"xiaomi": {
		"s25_ultra", "s25_plus", "s25",
	},
}

var thermosSizes = []ThermosSize{
	{
		Size:  "500",
		Price: 320,
		Colors: []Color{
			{Key: "black", Hex: "#111827"},
			{Key: "grey", Hex: "#5e5c5b"},
			{Key: "light_blue", Hex: "#a5ccd9"},
			{Key: "pink", Hex: "#d69d99"},
			{Key: "orange", Hex: "#ea580c"},
			{Key: "red", Hex: "#af3036"},
			{Key: "mint", Hex: "#9ad9a7"},
			{Key: "blue", Hex: "#26415e"},
			{Key: "yellow", Hex: "#eeee5d"},
			{Key: "dark_green", Hex: "#305f43"},
		},
	},
	{
		Size:  "750",
		Price: 380,
		Colors: []Color{
			{Key: "black-matte", Hex: "#1f2933"},
			{Key: "graphite", Hex: "#4b5563"},
			{Key: "red", Hex: "#c81e1e"},
			{Key: "orange", Hex: "#ea580c"},
			{Key: "beige", Hex: "#e6d3b1"},
			{Key: "mint", Hex: "#cde8df"},
			{Key: "green", Hex: "#0f766e"},
			{Key: "pink", Hex: "#f2a1b3"},
			{Key: "blue", Hex: "#1e3a8a"},
			{Key: "purple", Hex: "#7c6fb0"},
		},
	},
}

var (
	phoneFonts = []Font{
		{Label: "Poppins", Value: "Poppins, sans-serif"},
		{Label: "Inter", Value: "Inter, sans-serif"},
		{Label: "Roboto Slab", Value: "Roboto Slab, serif"},
		{Label: "Arial", Value: "Arial, sans-serif"},
	}

	thermosFonts = []Font{
		{Label: "Roboto Slab", Value: "Roboto Slab, serif"},
		{Label: "Montserrat", Value: "Montserrat, sans-serif"},
		{Label: "Oswald", Value: "Oswald, sans-serif"},
		{Label: "Pacifico", Value: "Pacifico, cursive"},
		{Label: "Exo 2", Value: "Exo 2, sans-serif"},
		{Label: "Caveat", Value: "Caveat, cursive"},
		{Label: "Advent Pro", Value: "Advent Pro, sans-serif"},
		{Label: "Amatic SC", Value: "Amatic SC, cursive"},
		{Label: "Russo One", Value: "Russo One, sans-serif"},
		{Label: "Marck Script", Value: "Marck Script, cursive"},
		{Label: "Rampart One", Value: "Rampart One, cursive"},
		{Label: "Rubik Dirt", Value: "Rubik Dirt, cursive"},
		{Label: "Great Vibes", Value: "Great Vibes, cursive"},
	}
)

// Brands lists the phone brands in alphabetical order.
func Brands() []string {
	brands := make([]string, 0, len(phoneModels))
	for b := range phoneModels {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	return brands
}

// Models returns the models of a brand, newest first.
func Models(brand string) ([]string, error) {
	models, ok := phoneModels[brand]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBrand, brand)
	}
	out := make([]string, len(models))
	copy(out, models)
	return out, nil
}

// ValidatePhone checks that brand and model are offered.
func ValidatePhone(brand, model string) error {
	models, ok := phoneModels[brand]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBrand, brand)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("%w: %q for %s", ErrUnknownModel, model, brand)
}

func ThermosSizes() []ThermosSize {
	out := make([]ThermosSize, len(thermosSizes))
	copy(out, thermosSizes)
	return out
}

func thermosSize(size string) (ThermosSize, error) {
	for _, s := range thermosSizes {
		if s.Size == size {
			return s, nil
		}
	}
	return ThermosSize{}, fmt.Errorf("%w: %q", ErrUnknownSize, size)
}

// ResolveThermosColor returns color when the size offers it and the size's
// first color otherwise.
func ResolveThermosColor(size, color string) (string, error) {
	s, err := thermosSize(size)
	if err != nil {
		return "", err
	}
	for _, c := range s.Colors {
		if c.Key == color {
			return color, nil
		}
	}
	return s.Colors[0].Key, nil
}

// Price returns the thermos price in lei.
func Price(size string) (int, error) {
	s, err := thermosSize(size)
	if err != nil {
		return 0, err
	}
	return s.Price, nil
}

func PhoneFonts() []Font   { return append([]Font(nil), phoneFonts...) }
func ThermosFonts() []Font { return append([]Font(nil), thermosFonts...) }

func withSlash(base string) string {
	if base == "" || strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

// PhoneAsset resolves the mockup of a phone model.
func PhoneAsset(staticBase, brand, model string) string {
	return fmt.Sprintf("%sassets/phone-mocks/%s/%s.png", withSlash(staticBase), brand, model)
}

// ThermosAsset resolves the mockup of a thermos variant.
func ThermosAsset(staticBase, size, color string) string {
	return fmt.Sprintf("%sassets/termos-mocks/%s/%s.png", withSlash(staticBase), size, color)
}
