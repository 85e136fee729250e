// Package snapshots serves the designs saved from a session.
package snapshots

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"mycase-designer/core"
	"mycase-designer/middleware"
	"mycase-designer/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type CreateDesignRequest struct {
	Name string `json:"name"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleCreateDesign saves the session's current design.
func HandleCreateDesign(reg *session.Registry, store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		s, err := reg.Get(sessionID)
		if err != nil {
			renderError(w, r, http.StatusNotFound, "Session not found")
			return
		}

		var req CreateDesignRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			logrus.WithField("error", err).Error("Failed to decode request")
			renderError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		design, err := s.SaveDesign(r.Context(), req.Name)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "session_id": sessionID}).Error("Failed to capture design")
			renderError(w, r, http.StatusInternalServerError, "Failed to capture design")
			return
		}
		if err := store.Save(r.Context(), design); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "session_id": sessionID}).Error("Failed to save design")
			renderError(w, r, http.StatusInternalServerError, "Failed to save design")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, design.Summary())
	}
}

// HandleListDesigns lists the designs saved from a session.
func HandleListDesigns(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")

		designs, err := store.List(r.Context(), sessionID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "session_id": sessionID}).Error("Failed to list designs")
			renderError(w, r, http.StatusInternalServerError, "Failed to list designs")
			return
		}
		if designs == nil {
			designs = []*core.SavedDesign{}
		}

		render.JSON(w, r, designs)
	}
}

// owned loads a design and checks it belongs to the caller's session. A
// design of another session is reported as missing.
func owned(store core.DesignStore, w http.ResponseWriter, r *http.Request) (*core.SavedDesign, bool) {
	claims, ok := middleware.Claims(r)
	if !ok {
		renderError(w, r, http.StatusUnauthorized, "Session claims not found")
		return nil, false
	}
	designID := chi.URLParam(r, "designId")
	log := logrus.WithFields(logrus.Fields{"design_id": designID, "session_id": claims.Subject})

	design, err := store.Get(r.Context(), designID)
	if err != nil {
		if errors.Is(err, core.ErrDesignNotFound) {
			log.Warn("Design not found")
			renderError(w, r, http.StatusNotFound, "Design not found")
			return nil, false
		}
		log.WithError(err).Error("Failed to get design")
		renderError(w, r, http.StatusInternalServerError, "Failed to get design")
		return nil, false
	}
	if design.SessionID != claims.Subject {
		log.Warn("Design belongs to another session")
		renderError(w, r, http.StatusNotFound, "Design not found")
		return nil, false
	}
	return design, true
}

func HandleGetDesign(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		design, ok := owned(store, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, design)
	}
}

// HandleDesignImage downloads a saved design's PNG.
func HandleDesignImage(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		design, ok := owned(store, w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="`+design.ID+`.png"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(design.Image)))
		if _, err := w.Write(design.Image); err != nil {
			logrus.WithField("error", err).Warn("Failed to write design image")
		}
	}
}

func HandleDeleteDesign(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		design, ok := owned(store, w, r)
		if !ok {
			return
		}
		if err := store.Delete(r.Context(), design.ID); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "design_id": design.ID}).Error("Failed to delete design")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete design")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
