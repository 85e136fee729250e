package canvas

import (
	"context"
	"math"
	"sync"
	"testing"
)

func TestScaler_Target(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)

	tests := []struct {
		container int
		wantW     int
		wantH     int
	}{
		{container: 1000, wantW: 420, wantH: 780},
		{container: 420, wantW: 420, wantH: 780},
		{container: 300, wantW: 300, wantH: 557},
		{container: 375, wantW: 375, wantH: 696},
		{container: 0, wantW: 0, wantH: 0},
	}

	for _, tt := range tests {
		w, h := sc.Target(tt.container)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("Target(%d) = %dx%d, want %dx%d", tt.container, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestScaler_SkipsUnchangedAndNonPositive(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)
	renders := s.Renders()

	if res := sc.Resize(800); res.Applied {
		t.Error("Expected resize to the current size to be skipped")
	}
	if res := sc.Resize(0); res.Applied {
		t.Error("Expected non-positive width to be skipped")
	}
	if res := sc.Resize(-20); res.Applied {
		t.Error("Expected negative width to be skipped")
	}
	if s.Renders() != renders {
		t.Errorf("Expected no renders for skipped resizes, got %d", s.Renders()-renders)
	}
}

func TestScaler_ReportsRatios(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)

	res := sc.Resize(210)
	if !res.Applied {
		t.Fatal("Expected resize to apply")
	}
	if res.SX != 0.5 || res.SY != 0.5 {
		t.Errorf("Expected ratios 0.5/0.5, got %f/%f", res.SX, res.SY)
	}
}

func TestScaler_SingleRenderPerResize(t *testing.T) {
	s := NewSurface(420, 780)
	s.Add(NewText("a", "Poppins", "#000", 40))
	s.Add(NewText("b", "Poppins", "#000", 40))
	s.SetOverlay(NewOverlay("s24.png", testPixels(420, 780), OverlayTop))
	sc := NewScaler(s)
	renders := s.Renders()

	sc.Resize(300)

	if s.Renders()-renders != 1 {
		t.Errorf("Expected 1 render, got %d", s.Renders()-renders)
	}
}

func TestScaler_IdempotentForSameTerminalWidth(t *testing.T) {
	sequences := [][]int{
		{300},
		{420, 100, 300},
		{250, 251, 252, 999, 300},
		{300, 300, 300},
	}

	var first Transform
	for i, seq := range sequences {
		s := NewSurface(420, 780)
		img := NewImage("a.png", testPixels(100, 100))
		s.Place(img, 100, 200, 0.7, OriginCenter)
		s.Add(img)
		sc := NewScaler(s)

		for _, w := range seq {
			sc.Resize(w)
		}

		w, h := s.Size()
		if w != 300 || h != 557 {
			t.Errorf("sequence %v: expected 300x557, got %dx%d", seq, w, h)
		}
		cur := s.Current(img)
		if i == 0 {
			first = cur
			continue
		}
		if math.Abs(cur.Left-first.Left) > 1e-9 || math.Abs(cur.ScaleX-first.ScaleX) > 1e-9 {
			t.Errorf("sequence %v: expected %+v, got %+v", seq, first, cur)
		}
	}
}

func TestScaler_NoDriftAfterManyResizes(t *testing.T) {
	s := NewSurface(420, 780)
	img := NewImage("a.png", testPixels(100, 100))
	s.Place(img, 123.4, 456.7, 0.85, OriginCenter)
	s.Add(img)
	start := s.Current(img)
	sc := NewScaler(s)

	for i := 0; i < 1000; i++ {
		sc.Resize(137 + i%283)
	}
	sc.Resize(420)

	end := s.Current(img)
	if end != start {
		t.Errorf("Expected transform %+v after returning to base size, got %+v", start, end)
	}
}

func TestScaler_OverlayExactFill(t *testing.T) {
	s := NewSurface(420, 780)
	o := NewOverlay("s24.png", testPixels(1179, 2556), OverlayTop)
	s.SetOverlay(o)
	sc := NewScaler(s)

	for _, w := range []int{400, 333, 280, 419, 150, 420, 391} {
		sc.Resize(w)
		cw, ch := s.Size()
		if math.Abs(o.ScaleX*float64(o.OriginalWidth)-float64(cw)) > 1e-9 {
			t.Errorf("width %d: overlay width %f != %d", w, o.ScaleX*float64(o.OriginalWidth), cw)
		}
		if math.Abs(o.ScaleY*float64(o.OriginalHeight)-float64(ch)) > 1e-9 {
			t.Errorf("width %d: overlay height %f != %d", w, o.ScaleY*float64(o.OriginalHeight), ch)
		}
	}
}

func TestScaler_RecentersPlaceholder(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)
	sc.Resize(300)

	cur := s.Current(s.Placeholder())
	if math.Abs(cur.Left-150) > 1e-9 {
		t.Errorf("Expected placeholder centered at 150, got %f", cur.Left)
	}
	if math.Abs(cur.Top-557.0/2) > 1e-9 {
		t.Errorf("Expected placeholder centered at %f, got %f", 557.0/2, cur.Top)
	}
}

type lockExecutor struct {
	mu sync.Mutex
}

func (e *lockExecutor) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

func TestScaler_Observe(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)
	exec := &lockExecutor{}
	widths := make(chan int)
	done := make(chan struct{})

	go func() {
		sc.Observe(context.Background(), exec, widths)
		close(done)
	}()

	widths <- 500
	widths <- 320
	widths <- 300
	close(widths)
	<-done

	exec.Do(func() {
		w, h := s.Size()
		if w != 300 || h != 557 {
			t.Errorf("Expected 300x557, got %dx%d", w, h)
		}
	})
}

func TestScaler_ObserveStopsOnCancel(t *testing.T) {
	s := NewSurface(420, 780)
	sc := NewScaler(s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sc.Observe(ctx, &lockExecutor{}, make(chan int))
		close(done)
	}()
	cancel()
	<-done
}
