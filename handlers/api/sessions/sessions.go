// Package sessions exposes design sessions over HTTP.
package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"mycase-designer/canvas"
	"mycase-designer/catalog"
	"mycase-designer/handlers/auth"
	"mycase-designer/order"
	"mycase-designer/overlay"
	"mycase-designer/render"
	"mycase-designer/session"
	"mycase-designer/uploads"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxJSONBody = 1 << 20

type (
	CreateSessionRequest struct {
		Kind string `json:"kind"`
	}

	CreateSessionResponse struct {
		ID    string       `json:"id"`
		Token string       `json:"token"`
		State session.View `json:"state"`
	}

	ProductRequest struct {
		Brand string `json:"brand"`
		Model string `json:"model"`
		Size  string `json:"size"`
		Color string `json:"color"`
	}

	ProductResponse struct {
		Status string       `json:"status"`
		Error  string       `json:"error,omitempty"`
		State  session.View `json:"state"`
	}

	ViewportRequest struct {
		ContainerWidth int `json:"containerWidth"`
	}

	ThemeRequest struct {
		Dark bool `json:"dark"`
	}

	TextRequest struct {
		Content string `json:"content"`
	}

	ThermosTextRequest struct {
		Text string `json:"text"`
		Font string `json:"font"`
		Fill string `json:"fill"`
	}

	SelectionRequest struct {
		ObjectID string `json:"objectId"`
	}

	StyleRequest struct {
		FontFamily string `json:"fontFamily"`
		Fill       string `json:"fill"`
	}

	KeyRequest struct {
		Key string `json:"key"`
	}

	KeyResponse struct {
		Removed bool `json:"removed"`
	}

	EditingRequest struct {
		ObjectID string `json:"objectId"`
		Editing  bool   `json:"editing"`
	}

	GestureRequest struct {
		Type    canvas.GestureKind  `json:"type"`
		Phase   canvas.GesturePhase `json:"phase"`
		Touches []canvas.Touch      `json:"touches"`
	}

	ObjectResponse struct {
		ID    string       `json:"id"`
		State session.View `json:"state"`
	}

	UploadError struct {
		Name  string `json:"name"`
		Error string `json:"error"`
	}

	UploadResponse struct {
		Files  []*uploads.File `json:"files"`
		Errors []UploadError   `json:"errors,omitempty"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	chirender.Status(r, status)
	chirender.JSON(w, r, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var se *order.StatusError
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, canvas.ErrNotFound),
		errors.Is(err, uploads.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, uploads.ErrNotImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrWrongKind),
		errors.Is(err, order.ErrNoProduct),
		errors.Is(err, order.ErrSubmitInProgress),
		errors.Is(err, canvas.ErrNotSelectable),
		errors.Is(err, canvas.ErrControlUnavailable),
		errors.Is(err, canvas.ErrNoSelection),
		errors.Is(err, canvas.ErrNotEditable),
		errors.Is(err, canvas.ErrNotText):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownKind),
		errors.Is(err, order.ErrInvalidCustomer),
		errors.Is(err, catalog.ErrUnknownBrand),
		errors.Is(err, catalog.ErrUnknownModel),
		errors.Is(err, catalog.ErrUnknownSize),
		errors.Is(err, canvas.ErrInvalidArgument),
		errors.Is(err, canvas.ErrGestureNeedsTouches):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.Is(err, order.ErrNoEndpoint):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	log := logrus.WithFields(logrus.Fields{
		"error":      err,
		"session_id": chi.URLParam(r, "id"),
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		log.Error(msg)
	} else {
		log.Warn(msg)
	}
	if status == http.StatusInternalServerError {
		renderError(w, r, status, msg)
		return
	}
	renderError(w, r, status, err.Error())
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		logrus.WithField("error", err).Warn("Failed to decode request")
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func lookup(reg *session.Registry, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

// HandleCreate starts a new design session and returns its token.
func HandleCreate(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if !decode(w, r, &req) {
			return
		}
		kind, err := session.ParseKind(req.Kind)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		s := reg.Create(kind)
		token, err := auth.CreateToken(s.ID, string(kind))
		if err != nil {
			_ = reg.Delete(s.ID)
			logrus.WithField("error", err).Error("Failed to create session token")
			renderError(w, r, http.StatusInternalServerError, "Failed to create session")
			return
		}

		chirender.Status(r, http.StatusCreated)
		chirender.JSON(w, r, CreateSessionResponse{ID: s.ID, Token: token, State: s.View()})
	}
}

func HandleGet(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleDelete(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Delete(chi.URLParam(r, "id")); err != nil {
			renderError(w, r, http.StatusNotFound, "Session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleProduct switches the phone model or thermos variant. With ?wait=true
// the response waits for the mockup to load.
func HandleProduct(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req ProductRequest
		if !decode(w, r, &req) {
			return
		}

		var err error
		var done <-chan overlay.Result
		if s.Kind == session.KindThermos {
			done, err = s.SelectThermos(req.Size, req.Color)
		} else {
			done, err = s.SelectPhone(req.Brand, req.Model)
		}
		if err != nil {
			fail(w, r, err, "Failed to select product")
			return
		}

		wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
		if done == nil || !wait {
			chirender.Status(r, http.StatusAccepted)
			chirender.JSON(w, r, ProductResponse{Status: "pending", State: s.View()})
			return
		}

		select {
		case res := <-done:
			resp := ProductResponse{Status: string(res.Status), State: s.View()}
			if res.Err != nil {
				resp.Error = res.Err.Error()
			}
			chirender.JSON(w, r, resp)
		case <-r.Context().Done():
			renderError(w, r, http.StatusServiceUnavailable, "Request cancelled")
		}
	}
}

func HandleViewport(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req ViewportRequest
		if !decode(w, r, &req) {
			return
		}
		if req.ContainerWidth <= 0 {
			renderError(w, r, http.StatusBadRequest, "containerWidth must be positive")
			return
		}
		chirender.JSON(w, r, s.Resize(req.ContainerWidth))
	}
}

func HandleTheme(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req ThemeRequest
		if !decode(w, r, &req) {
			return
		}
		s.SetDark(req.Dark)
		chirender.JSON(w, r, s.View())
	}
}

func HandleAddText(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req TextRequest
		if !decode(w, r, &req) {
			return
		}
		t, err := s.AddText(req.Content)
		if err != nil {
			fail(w, r, err, "Failed to add text")
			return
		}
		chirender.Status(r, http.StatusCreated)
		chirender.JSON(w, r, ObjectResponse{ID: t.ID, State: s.View()})
	}
}

func HandleThermosText(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req ThermosTextRequest
		if !decode(w, r, &req) {
			return
		}
		t, err := s.SetThermosText(req.Text, req.Font, req.Fill)
		if err != nil {
			fail(w, r, err, "Failed to set thermos text")
			return
		}
		chirender.JSON(w, r, ObjectResponse{ID: t.ID, State: s.View()})
	}
}

func HandleUpdateObject(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var patch session.ObjectPatch
		if !decode(w, r, &patch) {
			return
		}
		if err := s.UpdateObject(chi.URLParam(r, "objectId"), patch); err != nil {
			fail(w, r, err, "Failed to update object")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleControl(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var args canvas.ControlArgs
		if !decode(w, r, &args) {
			return
		}
		ctl := canvas.Control(chi.URLParam(r, "control"))
		if err := s.Invoke(chi.URLParam(r, "objectId"), ctl, args); err != nil {
			fail(w, r, err, "Failed to invoke control")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleSelection(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req SelectionRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.Select(req.ObjectID); err != nil {
			fail(w, r, err, "Failed to select object")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleStyle(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req StyleRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.SetStyle(req.FontFamily, req.Fill); err != nil {
			fail(w, r, err, "Failed to apply style")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleKey(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req KeyRequest
		if !decode(w, r, &req) {
			return
		}
		chirender.JSON(w, r, KeyResponse{Removed: s.KeyDown(req.Key)})
	}
}

func HandleEditing(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req EditingRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.SetEditing(req.ObjectID, req.Editing); err != nil {
			fail(w, r, err, "Failed to change editing mode")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleGesture(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var req GestureRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.Gesture(req.Type, req.Phase, req.Touches); err != nil {
			fail(w, r, err, "Failed to apply gesture")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}

func HandleClear(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		s.ClearDesign()
		chirender.JSON(w, r, s.View())
	}
}

// HandleExport downloads the design as PNG. Query: width (pixels, default the
// base width) and overlay (include the product mockup).
func HandleExport(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}

		var opts render.Options
		q := r.URL.Query()
		if v := q.Get("width"); v != "" {
			width, err := strconv.Atoi(v)
			if err != nil || width <= 0 || width > render.MaxExportWidth {
				renderError(w, r, http.StatusBadRequest, fmt.Sprintf("width must be between 1 and %d", render.MaxExportWidth))
				return
			}
			opts.Width = width
		}
		if v := q.Get("overlay"); v != "" {
			include, err := strconv.ParseBool(v)
			if err != nil {
				renderError(w, r, http.StatusBadRequest, "overlay must be a boolean")
				return
			}
			opts.IncludeOverlay = include
		}

		data, err := s.Export(r.Context(), opts)
		if err != nil {
			fail(w, r, err, "Failed to export design")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="design.png"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if _, err := w.Write(data); err != nil {
			logrus.WithField("error", err).Warn("Failed to write export")
		}
	}
}

// HandleOrder submits the order with the customer's details.
func HandleOrder(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookup(reg, w, r)
		if !ok {
			return
		}
		var c order.Customer
		if !decode(w, r, &c) {
			return
		}
		if err := s.SubmitOrder(r.Context(), c); err != nil {
			fail(w, r, err, "Failed to submit order")
			return
		}
		chirender.JSON(w, r, s.View())
	}
}
