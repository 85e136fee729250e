// Package overlay loads product mockups and installs them on a design
// surface, keeping the surface in step with the most recent request.
package overlay

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"mycase-designer/canvas"

	"github.com/sirupsen/logrus"
)

type Status string

const (
	StatusApplied Status = "applied"
	StatusStale   Status = "stale"
	StatusFailed  Status = "failed"
)

type (
	// Result reports how a request ended.
	Result struct {
		Seq    uint64
		Path   string
		Status Status
		Err    error
	}

	// Manager owns the overlay slot of one surface. Request and Clear must be
	// called while holding the executor; loads complete on their own
	// goroutine and re-enter through the executor.
	Manager struct {
		ctx     context.Context
		loader  Loader
		exec    canvas.Executor
		surface *canvas.Surface
		timeout time.Duration

		seq     atomic.Uint64
		wg      sync.WaitGroup
		current string

		onResult func(Result)
	}
)

// NewManager binds a loader to a surface. Loads inherit ctx, so cancelling
// it abandons every in-flight request.
func NewManager(ctx context.Context, loader Loader, exec canvas.Executor, surface *canvas.Surface) *Manager {
	if loader == nil || exec == nil || surface == nil {
		panic("overlay: manager needs a loader, an executor and a surface")
	}
	return &Manager{
		ctx:     ctx,
		loader:  loader,
		exec:    exec,
		surface: surface,
		timeout: 30 * time.Second,
	}
}

// SetTimeout bounds a single asset load.
func (m *Manager) SetTimeout(d time.Duration) { m.timeout = d }

// OnResult registers a callback invoked after every completed request,
// outside the executor.
func (m *Manager) OnResult(fn func(Result)) { m.onResult = fn }

// Current returns the asset path of the installed overlay.
func (m *Manager) Current() string { return m.current }

// Seq returns the sequence number of the latest request.
func (m *Manager) Seq() uint64 { return m.seq.Load() }

// Request starts loading path. Whatever order loads finish in, only the
// latest request may touch the surface. The returned channel yields exactly
// one Result.
func (m *Manager) Request(path string, mode canvas.OverlayMode) <-chan Result {
	return m.RequestThen(path, mode, nil)
}

// RequestThen is Request with a commit step. onApplied runs inside the
// executor right after the overlay is installed and never runs for a stale
// or failed load.
func (m *Manager) RequestThen(path string, mode canvas.OverlayMode, onApplied func()) <-chan Result {
	seq := m.seq.Add(1)
	out := make(chan Result, 1)
	log := logrus.WithFields(logrus.Fields{"seq": seq, "path": path})
	log.Debug("Overlay requested")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(out)

		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		img, err := m.loader.Load(ctx, path)
		cancel()

		var res Result
		m.exec.Do(func() {
			res = m.apply(seq, path, mode, img, err)
			if res.Status == StatusApplied && onApplied != nil {
				onApplied()
			}
		})

		switch res.Status {
		case StatusApplied:
			log.Info("Overlay applied successfully")
		case StatusStale:
			log.Debug("Discarded stale overlay load")
		case StatusFailed:
			log.WithError(res.Err).Warn("Failed to load overlay")
		}
		if m.onResult != nil {
			m.onResult(res)
		}
		out <- res
	}()
	return out
}

func (m *Manager) apply(seq uint64, path string, mode canvas.OverlayMode, img image.Image, err error) Result {
	res := Result{Seq: seq, Path: path}
	if seq != m.seq.Load() {
		res.Status = StatusStale
		return res
	}
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	m.surface.SetOverlay(canvas.NewOverlay(path, img, mode))
	m.current = path
	res.Status = StatusApplied
	return res
}

// Clear removes the overlay and invalidates every pending request.
func (m *Manager) Clear() {
	m.seq.Add(1)
	m.current = ""
	m.surface.RemoveOverlay()
}

// Wait blocks until every started load has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
