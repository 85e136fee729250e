package sessions

import (
	"io"
	"net/http"
	"strconv"

	"mycase-designer/session"
	"mycase-designer/uploads"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxUploadFiles = 20

// HandleUpload accepts photos sent as repeated "files" parts. Files that are
// not images are reported and skipped.
func HandleUpload(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadFiles*uploads.MaxFileSize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			logrus.WithField("error", err).Warn("Failed to parse upload")
			renderError(w, r, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			renderError(w, r, http.StatusBadRequest, "No files uploaded")
			return
		}
		if len(headers) > maxUploadFiles {
			renderError(w, r, http.StatusBadRequest, "Too many files")
			return
		}

		resp := UploadResponse{Files: make([]*uploads.File, 0, len(headers))}
		for _, fh := range headers {
			if fh.Size > uploads.MaxFileSize {
				resp.Errors = append(resp.Errors, UploadError{Name: fh.Filename, Error: uploads.ErrTooLarge.Error()})
				continue
			}
			f, err := fh.Open()
			if err != nil {
				resp.Errors = append(resp.Errors, UploadError{Name: fh.Filename, Error: err.Error()})
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				resp.Errors = append(resp.Errors, UploadError{Name: fh.Filename, Error: err.Error()})
				continue
			}
			file, err := s.Uploads().Add(fh.Filename, data)
			if err != nil {
				resp.Errors = append(resp.Errors, UploadError{Name: fh.Filename, Error: err.Error()})
				continue
			}
			resp.Files = append(resp.Files, file)
		}

		if len(resp.Files) == 0 {
			chirender.Status(r, http.StatusUnsupportedMediaType)
		} else {
			chirender.Status(r, http.StatusCreated)
		}
		chirender.JSON(w, r, resp)
	}
}

func HandleRemoveUpload(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		if err := s.RemoveUpload(chi.URLParam(r, "fileId")); err != nil {
			fail(w, r, err, "Failed to remove upload")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleThumbnail(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		f, err := s.Uploads().Get(chi.URLParam(r, "fileId"))
		if err != nil {
			fail(w, r, err, "Failed to get upload")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(f.Thumbnail)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		if _, err := w.Write(f.Thumbnail); err != nil {
			logrus.WithField("error", err).Warn("Failed to write thumbnail")
		}
	}
}

// HandlePlace puts an uploaded photo on the surface.
func HandlePlace(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		img, err := s.AddPhoto(chi.URLParam(r, "fileId"))
		if err != nil {
			fail(w, r, err, "Failed to place photo")
			return
		}
		chirender.Status(r, http.StatusCreated)
		chirender.JSON(w, r, ObjectResponse{ID: img.ID, State: s.View()})
	}
}
