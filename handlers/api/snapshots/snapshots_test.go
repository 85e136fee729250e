package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mycase-designer/core"
	"mycase-designer/handlers/auth"
	"mycase-designer/middleware"
	"mycase-designer/order"
	"mycase-designer/render"
	"mycase-designer/session"
	"mycase-designer/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type mockLoader struct{}

func (mockLoader) Load(ctx context.Context, path string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 84, 156)), nil
}

type mockSender struct{}

func (mockSender) Send(ctx context.Context, o order.Order) error { return nil }

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Save(ctx context.Context, d *core.SavedDesign) error { return errors.New("disk full") }
func (failingStore) List(ctx context.Context, id string) ([]*core.SavedDesign, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Get(ctx context.Context, id string) (*core.SavedDesign, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Delete(ctx context.Context, id string) error { return errors.New("disk full") }

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()
	fonts, err := render.NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() failed: %v", err)
	}
	return session.NewRegistry(session.Deps{
		Loader:     mockLoader{},
		Exporter:   render.NewExporter(fonts),
		Sender:     mockSender{},
		StaticBase: "/static/",
	}, time.Hour)
}

func call(h http.HandlerFunc, method string, body []byte, params map[string]string, subject string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if subject != "" {
		claims := &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
		ctx = context.WithValue(ctx, middleware.ClaimsContextKey, claims)
	}
	rr := httptest.NewRecorder()
	h(rr, req.WithContext(ctx))
	return rr
}

func TestDesignLifecycle(t *testing.T) {
	reg := newRegistry(t)
	store := memory.NewStore()
	s := reg.Create(session.KindThermos)
	s.WaitOverlays()
	params := map[string]string{"id": s.ID}

	rr := call(HandleCreateDesign(reg, store), "POST", []byte(`{"name":"Gift for Ion"}`), params, s.ID)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created core.SavedDesign
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.ID == "" || created.Name != "Gift for Ion" || created.Product != "thermos:750/black-matte" {
		t.Errorf("Unexpected design: %+v", created)
	}

	rr = call(HandleListDesigns(store), "GET", nil, params, s.ID)
	var list []core.SavedDesign
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("Expected one design listed, got %s", rr.Body.String())
	}

	designParams := map[string]string{"designId": created.ID}
	rr = call(HandleGetDesign(store), "GET", nil, designParams, s.ID)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	rr = call(HandleDesignImage(store), "GET", nil, designParams, s.ID)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Expected png download, got %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}

	rr = call(HandleGetDesign(store), "GET", nil, designParams, "someone-else")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for another session, got %d", rr.Code)
	}
	rr = call(HandleDeleteDesign(store), "DELETE", nil, designParams, "someone-else")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 deleting another session's design, got %d", rr.Code)
	}

	rr = call(HandleDeleteDesign(store), "DELETE", nil, designParams, s.ID)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	rr = call(HandleGetDesign(store), "GET", nil, designParams, s.ID)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rr.Code)
	}
}

func TestCreateDesign_UnknownSession(t *testing.T) {
	rr := call(HandleCreateDesign(newRegistry(t), memory.NewStore()), "POST", nil, map[string]string{"id": "nope"}, "nope")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestStoreFailures(t *testing.T) {
	reg := newRegistry(t)
	s := reg.Create(session.KindPhone)
	params := map[string]string{"id": s.ID, "designId": "x"}

	if rr := call(HandleCreateDesign(reg, failingStore{}), "POST", nil, params, s.ID); rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 on save failure, got %d", rr.Code)
	}
	if rr := call(HandleListDesigns(failingStore{}), "GET", nil, params, s.ID); rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 on list failure, got %d", rr.Code)
	}
	if rr := call(HandleGetDesign(failingStore{}), "GET", nil, params, s.ID); rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 on get failure, got %d", rr.Code)
	}
}

func TestGetDesign_NoClaims(t *testing.T) {
	rr := call(HandleGetDesign(memory.NewStore()), "GET", nil, map[string]string{"designId": "x"}, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}
