// Package order packages finished designs and forwards them to the order
// service.
package order

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"mycase-designer/catalog"
)

var (
	ErrNoProduct        = errors.New("no product selected")
	ErrInvalidCustomer  = errors.New("invalid customer details")
	ErrSubmitInProgress = errors.New("order submission already in progress")
	ErrNoEndpoint       = errors.New("order endpoint not configured")
)

var phonePattern = regexp.MustCompile(`^\+?\d+$`)

type (
	// Customer holds the order form fields.
	Customer struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
		Comment string `json:"comment"`
	}

	// FieldError names the form field that failed validation.
	FieldError struct {
		Field  string
		Reason string
	}

	Field struct {
		Name  string
		Value string
	}

	// Product is the item a design is ordered for. It decides where the
	// order goes and which product fields travel with it.
	Product interface {
		Endpoint() string
		Fields() []Field
	}

	PhoneProduct struct {
		Brand string
		Model string
	}

	ThermosProduct struct {
		Size      string
		Color     string
		Text      string
		Font      string
		TextColor string
	}

	// ReadyProduct orders a gallery design for a phone model. It carries no
	// design image; the service already has the artwork.
	ReadyProduct struct {
		DesignID     int64
		DesignTitle  string
		DesignURL    string
		Brand        string
		Model        string
		PersonalText string
	}
)

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidCustomer }

func (c Customer) normalized() Customer {
	return Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
		Comment: strings.TrimSpace(c.Comment),
	}
}

// Validate checks the form fields the order service accepts.
func (c Customer) Validate() error {
	c = c.normalized()
	if err := length("name", c.Name, 2, 50); err != nil {
		return err
	}
	if err := length("phone", c.Phone, 6, 16); err != nil {
		return err
	}
	if !phonePattern.MatchString(c.Phone) {
		return &FieldError{Field: "phone", Reason: "must contain digits only, optionally starting with +"}
	}
	if err := length("address", c.Address, 2, 250); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Comment) > 500 {
		return &FieldError{Field: "comment", Reason: "must be at most 500 characters"}
	}
	return nil
}

func length(field, v string, lo, hi int) error {
	n := utf8.RuneCountInString(v)
	if n < lo || n > hi {
		return &FieldError{Field: field, Reason: fmt.Sprintf("must be between %d and %d characters", lo, hi)}
	}
	return nil
}

func (c Customer) fields() []Field {
	c = c.normalized()
	return []Field{
		{Name: "name", Value: c.Name},
		{Name: "phone", Value: c.Phone},
		{Name: "address", Value: c.Address},
		{Name: "comment", Value: c.Comment},
	}
}

func (PhoneProduct) Endpoint() string { return "/order" }

func (p PhoneProduct) Fields() []Field {
	return []Field{
		{Name: "brand", Value: p.Brand},
		{Name: "model", Value: p.Model},
	}
}

func (ThermosProduct) Endpoint() string { return "/order-termos" }

// Fields sends the name text on one line; the vertical layout on the
// surface is presentation only.
func (p ThermosProduct) Fields() []Field {
	text := strings.ReplaceAll(p.Text, "\n", "")
	if text == "" {
		text = catalog.DefaultThermosText
	}
	font := p.Font
	if font == "" {
		font = catalog.DefaultThermosFont
	}
	color := p.TextColor
	if color == "" {
		color = catalog.DefaultThermosTextColor
	}
	return []Field{
		{Name: "termos_size", Value: p.Size},
		{Name: "termos_color", Value: p.Color},
		{Name: "termos_text", Value: text},
		{Name: "termos_font", Value: font},
		{Name: "termos_text_color", Value: color},
	}
}

func (ReadyProduct) Endpoint() string { return "/order/ready" }

// Fields trims the personal text and cuts it to
// catalog.MaxThermosTextLength characters.
func (p ReadyProduct) Fields() []Field {
	text := strings.TrimSpace(p.PersonalText)
	if r := []rune(text); len(r) > catalog.MaxThermosTextLength {
		text = string(r[:catalog.MaxThermosTextLength])
	}
	return []Field{
		{Name: "design_id", Value: strconv.FormatInt(p.DesignID, 10)},
		{Name: "design_title", Value: p.DesignTitle},
		{Name: "design_url", Value: p.DesignURL},
		{Name: "brand", Value: strings.TrimSpace(p.Brand)},
		{Name: "phone_model", Value: strings.TrimSpace(p.Model)},
		{Name: "personal_text", Value: text},
	}
}
