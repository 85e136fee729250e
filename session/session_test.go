package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"mycase-designer/canvas"
	"mycase-designer/catalog"
	"mycase-designer/order"
	"mycase-designer/overlay"
	"mycase-designer/render"
)

type mockLoader struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	fail   map[string]bool
	loads  []string
}

func (l *mockLoader) Load(ctx context.Context, path string) (image.Image, error) {
	l.mu.Lock()
	l.loads = append(l.loads, path)
	delay := l.delays[path]
	fail := l.fail[path]
	l.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, overlay.ErrAssetNotFound
	}
	return image.NewRGBA(image.Rect(0, 0, 840, 1560)), nil
}

type mockSender struct {
	mu     sync.Mutex
	err    error
	orders []order.Order
}

func (m *mockSender) Send(ctx context.Context, o order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	return m.err
}

func (m *mockSender) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type mockNotifier struct {
	mu        sync.Mutex
	notices   []Notice
	themes    []bool
	forgotten []string
}

func (n *mockNotifier) Notify(sessionID string, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *mockNotifier) ThemeChanged(sessionID string, dark bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.themes = append(n.themes, dark)
}

func (n *mockNotifier) Forget(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forgotten = append(n.forgotten, sessionID)
}

func (n *mockNotifier) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

type fixture struct {
	loader   *mockLoader
	sender   *mockSender
	notifier *mockNotifier
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fonts, err := render.NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() failed: %v", err)
	}
	f := &fixture{
		loader:   &mockLoader{delays: map[string]time.Duration{}, fail: map[string]bool{}},
		sender:   &mockSender{},
		notifier: &mockNotifier{},
	}
	f.deps = Deps{
		Loader:       f.loader,
		Exporter:     render.NewExporter(fonts),
		Sender:       f.sender,
		Notifier:     f.notifier,
		StaticBase:   "/static/",
		BaseWidth:    420,
		BaseHeight:   780,
		OrderTimeout: time.Second,
	}
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var customer = order.Customer{Name: "Ana", Phone: "+37360123456", Address: "Chisinau"}

func selectPhone(t *testing.T, s *Session, brand, model string) {
	t.Helper()
	done, err := s.SelectPhone(brand, model)
	if err != nil {
		t.Fatalf("SelectPhone() failed: %v", err)
	}
	if res := <-done; res.Status != overlay.StatusApplied {
		t.Fatalf("Expected overlay applied, got %s (%v)", res.Status, res.Err)
	}
}

func layers(s *Session) int {
	var n int
	s.Do(func() { n = s.Surface().Len() })
	return n
}

func TestPhoneScenario(t *testing.T) {
	f := newFixture(t)
	s := New("phone", KindPhone, f.deps)

	selectPhone(t, s, "samsung", "s24")
	v := s.View()
	if v.Overlay == nil || v.Overlay.Source != "/static/assets/phone-mocks/samsung/s24.png" {
		t.Fatalf("Expected samsung s24 overlay, got %+v", v.Overlay)
	}
	if math.Abs(v.Overlay.ScaleX*float64(v.Overlay.OriginalWidth)-420) > 1e-9 ||
		math.Abs(v.Overlay.ScaleY*float64(v.Overlay.OriginalHeight)-780) > 1e-9 {
		t.Errorf("Expected overlay to fill 420x780, got scale %f/%f", v.Overlay.ScaleX, v.Overlay.ScaleY)
	}

	file, err := s.Uploads().Add("photo.png", pngBytes(t, 1000, 500))
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if _, err := s.AddPhoto(file.ID); err != nil {
		t.Fatalf("AddPhoto() failed: %v", err)
	}
	if n := layers(s); n != 2 {
		t.Errorf("Expected overlay and photo, got %d layers", n)
	}
	if s.View().Placeholder {
		t.Error("Expected no placeholder")
	}

	addText(t, s, "Hello")
	if n := layers(s); n != 3 {
		t.Errorf("Expected 3 layers after adding text, got %d", n)
	}
	if !s.View().Panel.Visible {
		t.Error("Expected style panel visible for the new text")
	}

	if !s.KeyDown("Delete") {
		t.Fatal("Expected Delete to remove the selected text")
	}
	if n := layers(s); n != 2 {
		t.Errorf("Expected 2 layers after delete, got %d", n)
	}
	if s.View().Panel.Visible {
		t.Error("Expected style panel hidden after delete")
	}

	s.ClearDesign()
	v = s.View()
	if n := layers(s); n != 1 {
		t.Errorf("Expected only the overlay after clear, got %d layers", n)
	}
	if v.Overlay == nil || v.Placeholder {
		t.Errorf("Expected overlay kept and no placeholder, got overlay=%v placeholder=%v", v.Overlay != nil, v.Placeholder)
	}
}

func TestOrderWithoutProduct(t *testing.T) {
	f := newFixture(t)
	s := New("empty", KindPhone, f.deps)

	v := s.View()
	if !v.Placeholder || v.Overlay != nil || len(v.Objects) != 0 {
		t.Fatalf("Expected only the placeholder, got %+v", v)
	}
	if n := layers(s); n != 1 {
		t.Errorf("Expected the placeholder as the only layer, got %d", n)
	}

	err := s.SubmitOrder(context.Background(), customer)
	if !errors.Is(err, order.ErrNoProduct) {
		t.Fatalf("Expected ErrNoProduct, got %v", err)
	}
	if f.sender.calls() != 0 {
		t.Errorf("Expected zero network calls, got %d", f.sender.calls())
	}
	if n := f.notifier.last(); n.Level != "error" {
		t.Errorf("Expected error notice, got %+v", n)
	}
}

func TestFailedOrderPreservesState(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("network down")
	s := New("retry", KindPhone, f.deps)

	selectPhone(t, s, "apple", "iphone_15")
	file, _ := s.Uploads().Add("photo.png", pngBytes(t, 100, 100))
	s.AddPhoto(file.ID)
	addText(t, s, "Hi")
	before := s.View()

	if err := s.SubmitOrder(context.Background(), customer); err == nil {
		t.Fatal("Expected submit error")
	}
	after := s.View()

	if len(after.Uploads) != 1 || after.Uploads[0].ID != file.ID {
		t.Errorf("Expected uploads preserved, got %v", after.Uploads)
	}
	if len(after.Objects) != len(before.Objects) {
		t.Fatalf("Expected %d objects, got %d", len(before.Objects), len(after.Objects))
	}
	for i := range before.Objects {
		if before.Objects[i].ID != after.Objects[i].ID || before.Objects[i].Transform != after.Objects[i].Transform {
			t.Errorf("Expected object %d unchanged", i)
		}
	}
	if after.Overlay == nil {
		t.Error("Expected overlay still shown")
	}
	if !after.Order.Enabled || after.OrderState != order.StateRetryable {
		t.Errorf("Expected enabled retryable submit, got %+v %s", after.Order, after.OrderState)
	}
	if !strings.Contains(after.OrderError, "network down") {
		t.Errorf("Expected order error in view, got %q", after.OrderError)
	}
	if after.Customer.Name != "Ana" {
		t.Errorf("Expected form fields kept, got %+v", after.Customer)
	}
	if f.sender.calls() != 1 {
		t.Errorf("Expected one attempt, got %d", f.sender.calls())
	}

	f.sender.mu.Lock()
	f.sender.err = nil
	f.sender.mu.Unlock()
	if err := s.SubmitOrder(context.Background(), customer); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}

	v := s.View()
	if len(v.Objects) != 0 || v.Overlay != nil || !v.Placeholder || len(v.Uploads) != 0 {
		t.Errorf("Expected reset after success, got %+v", v)
	}
	if v.Product.Brand != "" || v.Customer.Name != "" {
		t.Errorf("Expected product and form cleared, got %+v %+v", v.Product, v.Customer)
	}
	if v.OrderError != "" {
		t.Errorf("Expected order error cleared after success, got %q", v.OrderError)
	}
}

func TestPhoneOrderPayload(t *testing.T) {
	f := newFixture(t)
	s := New("payload", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")
	file, _ := s.Uploads().Add("a.png", pngBytes(t, 10, 10))
	s.AddPhoto(file.ID)

	if err := s.SubmitOrder(context.Background(), customer); err != nil {
		t.Fatalf("SubmitOrder() failed: %v", err)
	}
	o := f.sender.orders[0]
	if o.Path != "/order" {
		t.Errorf("Expected /order, got %s", o.Path)
	}
	fields := map[string]string{}
	for _, fl := range o.Fields {
		fields[fl.Name] = fl.Value
	}
	if fields["brand"] != "samsung" || fields["model"] != "s24" || fields["name"] != "Ana" {
		t.Errorf("Unexpected fields %v", fields)
	}
	if len(o.Files) != 1 || o.Files[0].Name != "a.png" {
		t.Errorf("Expected uploaded file attached, got %v", o.Files)
	}
	img, err := png.Decode(bytes.NewReader(o.Design))
	if err != nil {
		t.Fatalf("Expected PNG design: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 420 || b.Dy() != 780 {
		t.Errorf("Expected 420x780 design, got %v", b)
	}
}

func TestLatestModelWins(t *testing.T) {
	f := newFixture(t)
	f.loader.delays["/static/assets/phone-mocks/samsung/s24.png"] = 50 * time.Millisecond
	s := New("race", KindPhone, f.deps)

	if _, err := s.SelectPhone("samsung", "s24"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SelectPhone("samsung", "s23"); err != nil {
		t.Fatal(err)
	}
	s.WaitOverlays()

	if v := s.View(); v.Overlay == nil || !strings.HasSuffix(v.Overlay.Source, "/s23.png") {
		t.Errorf("Expected s23 overlay, got %+v", v.Overlay)
	}
}

func TestSelectPhoneEmptyClearsOverlay(t *testing.T) {
	f := newFixture(t)
	s := New("clear", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")

	done, err := s.SelectPhone("samsung", "")
	if err != nil || done != nil {
		t.Fatalf("Expected no load, got %v %v", done, err)
	}
	v := s.View()
	if v.Overlay != nil || !v.Placeholder {
		t.Errorf("Expected placeholder without overlay, got %+v", v)
	}

	if _, err := s.SelectPhone("nokia", "3310"); err == nil {
		t.Error("Expected unknown brand error")
	}
}

func TestOverlayFailureNotifies(t *testing.T) {
	f := newFixture(t)
	f.loader.fail["/static/assets/phone-mocks/samsung/s22.png"] = true
	s := New("fail", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")

	done, _ := s.SelectPhone("samsung", "s22")
	if res := <-done; res.Status != overlay.StatusFailed {
		t.Fatalf("Expected failure, got %s", res.Status)
	}
	s.WaitOverlays()
	if n := f.notifier.last(); n.Level != "error" {
		t.Errorf("Expected error notice, got %+v", n)
	}
	if v := s.View(); v.Overlay == nil || !strings.HasSuffix(v.Overlay.Source, "/s24.png") {
		t.Error("Expected previous overlay kept")
	}
}

func TestFailedSelectionKeepsOrderedModel(t *testing.T) {
	f := newFixture(t)
	f.loader.fail["/static/assets/phone-mocks/samsung/s23.png"] = true
	s := New("keep", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")

	done, err := s.SelectPhone("samsung", "s23")
	if err != nil {
		t.Fatalf("SelectPhone() failed: %v", err)
	}
	if res := <-done; res.Status != overlay.StatusFailed {
		t.Fatalf("Expected failure, got %s", res.Status)
	}

	if v := s.View(); v.Product.Model != "s24" {
		t.Errorf("Expected view to keep s24, got %s", v.Product.Model)
	}
	if label := s.ProductLabel(); label != "phone:samsung/s24" {
		t.Errorf("Expected phone:samsung/s24, got %s", label)
	}
	if err := s.SubmitOrder(context.Background(), customer); err != nil {
		t.Fatalf("SubmitOrder() failed: %v", err)
	}
	fields := map[string]string{}
	for _, fl := range f.sender.orders[0].Fields {
		fields[fl.Name] = fl.Value
	}
	if fields["model"] != "s24" {
		t.Errorf("Expected ordered model s24, got %q", fields["model"])
	}
}

func TestFailedThermosSelectionKeepsVariant(t *testing.T) {
	f := newFixture(t)
	f.loader.fail["/static/assets/termos-mocks/500/black.png"] = true
	s := New("keep-thermos", KindThermos, f.deps)
	s.WaitOverlays()

	done, err := s.SelectThermos("500", "black")
	if err != nil {
		t.Fatalf("SelectThermos() failed: %v", err)
	}
	if res := <-done; res.Status != overlay.StatusFailed {
		t.Fatalf("Expected failure, got %s", res.Status)
	}
	if v := s.View(); v.Product.Thermos.Size != "750" {
		t.Errorf("Expected size 750 kept, got %+v", v.Product.Thermos)
	}
}

func TestQueueResizeAppliesLatestWidth(t *testing.T) {
	f := newFixture(t)
	s := New("queue", KindPhone, f.deps)
	defer s.Close()

	for _, w := range []int{500, 400, 350, 300} {
		s.QueueResize(w)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		v := s.View()
		if v.Width == 300 && v.Height == 557 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 300x557 after queued resizes, got %dx%d", v.Width, v.Height)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResizeKeepsOverlayFilled(t *testing.T) {
	f := newFixture(t)
	s := New("resize", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")

	res := s.Resize(300)
	if !res.Applied || res.Width != 300 || res.Height != 557 {
		t.Fatalf("Expected 300x557, got %+v", res)
	}
	v := s.View()
	if math.Abs(v.Overlay.ScaleX*840-300) > 1e-9 || math.Abs(v.Overlay.ScaleY*1560-557) > 1e-9 {
		t.Errorf("Expected overlay to fill 300x557, got %f/%f", v.Overlay.ScaleX, v.Overlay.ScaleY)
	}
	if res := s.Resize(800); res.Width != 420 {
		t.Errorf("Expected width capped at 420, got %d", res.Width)
	}
}

func TestSetDarkNotifiesOnChange(t *testing.T) {
	f := newFixture(t)
	s := New("theme", KindPhone, f.deps)

	s.SetDark(true)
	s.SetDark(true)
	s.SetDark(false)

	if len(f.notifier.themes) != 2 || !f.notifier.themes[0] || f.notifier.themes[1] {
		t.Errorf("Expected [true false], got %v", f.notifier.themes)
	}
	if text := addText(t, s, ""); text.Fill != canvas.PhoneLight.Text {
		t.Errorf("Expected light theme text color, got %s", text.Fill)
	}
}

func TestUpdateObject(t *testing.T) {
	f := newFixture(t)
	s := New("patch", KindPhone, f.deps)
	text := addText(t, s, "Hi")

	left, angle, content := 100.0, 45.0, "Salut"
	var before int
	s.Do(func() { before = s.Surface().Renders() })
	if err := s.UpdateObject(text.ID, ObjectPatch{Left: &left, Angle: &angle, Content: &content}); err != nil {
		t.Fatalf("UpdateObject() failed: %v", err)
	}

	v := s.View()
	obj := v.Objects[0]
	if obj.Transform.Left != 100 || obj.Transform.Top != 150 || obj.Transform.Angle != 45 || obj.Content != "Salut" {
		t.Errorf("Unexpected object %+v", obj)
	}
	if v.Renders != before+1 {
		t.Errorf("Expected a single render, got %d", v.Renders-before)
	}

	zero := 0.0
	if err := s.UpdateObject(text.ID, ObjectPatch{ScaleX: &zero}); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if err := s.UpdateObject("missing", ObjectPatch{Left: &left}); !errors.Is(err, canvas.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func addText(t *testing.T, s *Session, content string) *canvas.Text {
	t.Helper()
	text, err := s.AddText(content)
	if err != nil {
		t.Fatalf("AddText(%q) failed: %v", content, err)
	}
	return text
}

func TestUpdateObjectRejectsNonFinite(t *testing.T) {
	f := newFixture(t)
	s := New("finite", KindPhone, f.deps)
	text := addText(t, s, "Hi")
	before := s.View().Objects[0].Transform

	nan, inf, left := math.NaN(), math.Inf(1), 5.0
	for _, p := range []ObjectPatch{
		{Angle: &nan},
		{Left: &left, ScaleY: &inf},
		{Top: &inf},
	} {
		if err := s.UpdateObject(text.ID, p); !errors.Is(err, canvas.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for %+v, got %v", p, err)
		}
	}
	if after := s.View().Objects[0].Transform; after != before {
		t.Errorf("Expected rejected patches to change nothing, got %+v", after)
	}

	huge := 1e300
	done := make(chan error, 1)
	go func() { done <- s.UpdateObject(text.ID, ObjectPatch{Angle: &huge}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("UpdateObject() failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateObject did not return for a huge angle")
	}
	if a := s.View().Objects[0].Transform.Angle; a < 0 || a >= 360 {
		t.Errorf("Expected angle in [0, 360), got %f", a)
	}
}

func TestTextLimits(t *testing.T) {
	f := newFixture(t)
	s := New("limits", KindPhone, f.deps)

	if _, err := s.AddText(strings.Repeat("a", canvas.MaxTextLength+1)); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for long text, got %v", err)
	}
	text := addText(t, s, strings.Repeat("ă", canvas.MaxTextLength))
	long := strings.Repeat("b", 1<<20)
	if err := s.UpdateObject(text.ID, ObjectPatch{Content: &long}); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for long content, got %v", err)
	}
	if got := s.View().Objects[0].Content; got != text.Content {
		t.Error("Expected content unchanged after rejected edit")
	}

	th := New("limits-thermos", KindThermos, f.deps)
	th.WaitOverlays()
	if _, err := th.SetThermosText(strings.Repeat("X", catalog.MaxThermosTextLength+1), "", ""); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for long thermos text, got %v", err)
	}
	if _, err := th.SetThermosText(strings.Repeat("X", catalog.MaxThermosTextLength), "", ""); err != nil {
		t.Errorf("Expected thermos text at the limit accepted, got %v", err)
	}
}

func TestColorValidation(t *testing.T) {
	f := newFixture(t)
	s := New("colors", KindPhone, f.deps)
	text := addText(t, s, "Hi")

	for _, bad := range []string{"red", "#12", "ff0000", "#gggggg", "#ff0000 "} {
		if err := s.SetStyle("", bad); !errors.Is(err, canvas.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for %q, got %v", bad, err)
		}
	}
	if err := s.SetStyle("Inter, sans-serif", "nope"); err == nil {
		t.Error("Expected error")
	}
	if got := s.View().Panel.FontFamily; got != canvas.DefaultTextFont {
		t.Errorf("Expected font untouched by a rejected style change, got %s", got)
	}
	if err := s.SetStyle("", "#ABCDEF"); err != nil {
		t.Errorf("Expected valid color accepted, got %v", err)
	}
	if text.Fill != "#ABCDEF" {
		t.Errorf("Expected fill applied, got %s", text.Fill)
	}

	th := New("colors-thermos", KindThermos, f.deps)
	th.WaitOverlays()
	if _, err := th.SetThermosText("ION", "", "white"); !errors.Is(err, canvas.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for thermos fill, got %v", err)
	}
	if got := th.View().Product.Thermos.TextColor; got != catalog.DefaultThermosTextColor {
		t.Errorf("Expected text color unchanged, got %s", got)
	}
}

func TestEditingBlocksDelete(t *testing.T) {
	f := newFixture(t)
	s := New("edit", KindPhone, f.deps)
	text := addText(t, s, "Hi")

	if err := s.SetEditing(text.ID, true); err != nil {
		t.Fatalf("SetEditing() failed: %v", err)
	}
	if s.KeyDown("Backspace") {
		t.Error("Expected Backspace ignored while editing")
	}
	s.SetEditing("", false)
	if !s.KeyDown("Backspace") {
		t.Error("Expected Backspace to delete after editing ends")
	}
}

func TestThermosSession(t *testing.T) {
	f := newFixture(t)
	s := New("thermos", KindThermos, f.deps)
	s.WaitOverlays()

	v := s.View()
	if v.Overlay == nil || v.Overlay.Mode != canvas.OverlayBackground.String() {
		t.Fatalf("Expected background overlay, got %+v", v.Overlay)
	}
	if !strings.HasSuffix(v.Overlay.Source, "termos-mocks/750/black-matte.png") {
		t.Errorf("Expected default thermos mockup, got %s", v.Overlay.Source)
	}
	if v.Background != "#ffffff" {
		t.Errorf("Expected white background, got %s", v.Background)
	}
	if len(v.Objects) != 1 {
		t.Fatalf("Expected the name text only, got %d objects", len(v.Objects))
	}
	name := v.Objects[0]
	if name.Content != VerticalText("Numele tau") || name.Transform.Angle != 90 || name.FontSize != 75 || !name.Pinned {
		t.Errorf("Unexpected name text %+v", name)
	}
	for _, c := range name.Controls {
		if c == canvas.ControlDelete {
			t.Error("Expected the name text to have no delete control")
		}
	}
	if math.Abs(name.Transform.Left-420/2.1) > 1e-9 || math.Abs(name.Transform.Top-780/1.85) > 1e-9 {
		t.Errorf("Unexpected name position %+v", name.Transform)
	}
	if s.KeyDown("Delete") {
		t.Error("Expected the name text to survive Delete")
	}

	file, _ := s.Uploads().Add("big.png", pngBytes(t, 800, 400))
	img, err := s.AddPhoto(file.ID)
	if err != nil {
		t.Fatalf("AddPhoto() failed: %v", err)
	}
	v = s.View()
	if v.Objects[0].ID != img.ID || !v.Objects[1].Pinned {
		t.Error("Expected the photo below the pinned name text")
	}
	if v.Objects[0].Transform.ScaleX != 0.25 {
		t.Errorf("Expected photo scaled to 200px, got %f", v.Objects[0].Transform.ScaleX)
	}

	if _, err := s.SetThermosText("ION", "Pacifico, cursive", "#ff0000"); err != nil {
		t.Fatalf("SetThermosText() failed: %v", err)
	}
	s.ClearDesign()
	v = s.View()
	if len(v.Objects) != 1 || v.Objects[0].Content != "I\nO\nN" || v.Objects[0].Fill != "#ff0000" {
		t.Errorf("Expected name text restored after clear, got %+v", v.Objects)
	}
	if v.Overlay == nil {
		t.Error("Expected overlay kept after clear")
	}

	done, err := s.SelectThermos("500", "black-matte")
	if err != nil {
		t.Fatalf("SelectThermos() failed: %v", err)
	}
	<-done
	if v := s.View(); v.Product.Thermos.Color != "black" || v.Product.Price != 320 {
		t.Errorf("Expected fallback color black and price 320, got %+v", v.Product)
	}

	if _, err := s.SelectPhone("samsung", "s24"); !errors.Is(err, ErrWrongKind) {
		t.Errorf("Expected ErrWrongKind, got %v", err)
	}
}

func TestThermosOrder(t *testing.T) {
	f := newFixture(t)
	s := New("thermos-order", KindThermos, f.deps)
	s.WaitOverlays()

	if err := s.SubmitOrder(context.Background(), customer); err != nil {
		t.Fatalf("SubmitOrder() failed: %v", err)
	}
	o := f.sender.orders[0]
	fields := map[string]string{}
	for _, fl := range o.Fields {
		fields[fl.Name] = fl.Value
	}
	if o.Path != "/order-termos" || fields["termos_text"] != "Numele tau" || fields["termos_size"] != "750" {
		t.Errorf("Unexpected thermos order %s %v", o.Path, fields)
	}

	s.WaitOverlays()
	v := s.View()
	if v.Product.Thermos.Size != "750" || len(v.Objects) != 1 || v.Overlay == nil {
		t.Errorf("Expected thermos defaults after reset, got %+v", v)
	}
}

func TestExportExcludesOverlayByDefault(t *testing.T) {
	f := newFixture(t)
	s := New("export", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")

	data, err := s.Export(context.Background(), render.Options{Width: 210})
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	img, _ := png.Decode(bytes.NewReader(data))
	if b := img.Bounds(); b.Dx() != 210 || b.Dy() != 390 {
		t.Errorf("Expected 210x390, got %v", b)
	}
	if v := s.View(); v.Overlay == nil {
		t.Error("Expected overlay still installed")
	}
}

func TestSaveDesign(t *testing.T) {
	f := newFixture(t)
	s := New("S1", KindPhone, f.deps)
	selectPhone(t, s, "samsung", "s24")
	addText(t, s, "Hello")

	d, err := s.SaveDesign(context.Background(), "  ")
	if err != nil {
		t.Fatalf("SaveDesign() failed: %v", err)
	}
	if d.SessionID != "S1" || d.Product != "phone:samsung/s24" {
		t.Errorf("Unexpected design: %+v", d)
	}
	if !strings.HasPrefix(d.Name, "Design ") {
		t.Errorf("Expected generated name, got %q", d.Name)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(d.Image))
	if err != nil || cfg.Width != 420 || cfg.Height != 780 {
		t.Errorf("Expected 420x780 png, got %+v (%v)", cfg, err)
	}
	if !strings.Contains(string(d.State), `"Hello"`) {
		t.Errorf("Expected state to contain the text, got %s", d.State)
	}
	if layers(s) != 2 {
		t.Errorf("Expected session unchanged, got %d layers", layers(s))
	}
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry(f.deps, time.Minute)

	a := r.Create(KindPhone)
	b := r.Create(KindThermos)
	b.WaitOverlays()
	if r.Len() != 2 {
		t.Fatalf("Expected 2 sessions, got %d", r.Len())
	}
	if got, err := r.Get(a.ID); err != nil || got != a {
		t.Errorf("Expected session a, got %v %v", got, err)
	}

	if err := r.Delete(a.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := r.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	if n := r.Sweep(time.Now()); n != 0 {
		t.Errorf("Expected nothing evicted yet, got %d", n)
	}
	if n := r.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("Expected idle session evicted, got %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.forgotten) != 2 || f.notifier.forgotten[0] != a.ID || f.notifier.forgotten[1] != b.ID {
		t.Errorf("Expected notices of both sessions forgotten, got %v", f.notifier.forgotten)
	}
}

func TestParseKind(t *testing.T) {
	if k, _ := ParseKind(""); k != KindPhone {
		t.Errorf("Expected phone by default, got %s", k)
	}
	if k, _ := ParseKind("Thermos"); k != KindThermos {
		t.Errorf("Expected thermos, got %s", k)
	}
	if _, err := ParseKind("mug"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}
