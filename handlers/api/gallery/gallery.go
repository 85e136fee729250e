// Package gallery serves the ready-made designs and takes orders for them.
package gallery

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"mycase-designer/catalog"
	"mycase-designer/order"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxJSONBody = 64 << 10

type (
	ReadyOrderRequest struct {
		DesignID     int64          `json:"designId"`
		Brand        string         `json:"brand"`
		Model        string         `json:"model"`
		PersonalText string         `json:"personalText"`
		Customer     order.Customer `json:"customer"`
	}

	ReadyOrderResponse struct {
		Status string `json:"status"`
		Slug   string `json:"slug"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleList lists active designs, optionally filtered by ?category= and
// ?brand=.
func HandleList(g *catalog.Gallery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		render.JSON(w, r, g.List(q.Get("category"), q.Get("brand")))
	}
}

func HandleDetail(g *catalog.Gallery) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := g.BySlug(chi.URLParam(r, "slug"))
		if err != nil {
			renderError(w, r, http.StatusNotFound, "Design not found")
			return
		}
		render.JSON(w, r, d)
	}
}

// HandleReadyOrder orders a gallery design for a phone model. Each request
// runs its own order flow; there is no design session behind it.
func HandleReadyOrder(g *catalog.Gallery, sender order.Sender, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReadyOrderRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
			logrus.WithField("error", err).Warn("Failed to decode request")
			renderError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		d, err := g.ByID(req.DesignID)
		if err != nil {
			renderError(w, r, http.StatusNotFound, "Design not found")
			return
		}
		brand, model := strings.TrimSpace(req.Brand), strings.TrimSpace(req.Model)
		if err := catalog.ValidatePhone(brand, model); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		product := order.ReadyProduct{
			DesignID:     d.ID,
			DesignTitle:  d.Title,
			DesignURL:    absURL(r, d.ImageURL),
			Brand:        brand,
			Model:        model,
			PersonalText: req.PersonalText,
		}
		err = order.NewFlow(sender, timeout).Submit(r.Context(), order.Request{
			Customer: req.Customer,
			Product:  product,
		})
		if err != nil {
			status := statusFor(err)
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"design_id": d.ID,
				"status":    status,
			}).Warn("Failed to submit ready order")
			renderError(w, r, status, err.Error())
			return
		}

		logrus.WithFields(logrus.Fields{"design_id": d.ID, "brand": brand, "model": model}).Info("Ready order submitted successfully")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ReadyOrderResponse{Status: "ok", Slug: d.Slug})
	}
}

func statusFor(err error) int {
	var se *order.StatusError
	switch {
	case errors.Is(err, order.ErrInvalidCustomer):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.Is(err, order.ErrNoEndpoint):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// absURL resolves a site-relative image path against the request host so
// the order service can fetch it.
func absURL(r *http.Request, path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + r.Host + path
}
