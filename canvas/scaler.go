package canvas

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
)

type (
	// ResizeResult describes one resize decision.
	ResizeResult struct {
		Width   int     `json:"width"`
		Height  int     `json:"height"`
		SX      float64 `json:"sx"`
		SY      float64 `json:"sy"`
		Applied bool    `json:"applied"`
	}

	// Executor runs fn with exclusive access to the surface.
	Executor interface {
		Do(fn func())
	}

	// Scaler keeps the surface fitted to its hosting container.
	Scaler struct {
		surface *Surface
	}
)

func NewScaler(surface *Surface) *Scaler {
	return &Scaler{surface: surface}
}

// Target computes the aspect-locked size for a container width.
func (sc *Scaler) Target(containerWidth int) (int, int) {
	baseW, baseH := sc.surface.BaseSize()
	w := containerWidth
	if w > baseW {
		w = baseW
	}
	h := int(math.Round(float64(w) * float64(baseH) / float64(baseW)))
	return w, h
}

// Resize fits the surface to containerWidth. Sizes that are unchanged or
// non-positive are skipped.
func (sc *Scaler) Resize(containerWidth int) ResizeResult {
	lastW, lastH := sc.surface.Size()
	w, h := sc.Target(containerWidth)
	res := ResizeResult{Width: lastW, Height: lastH, SX: 1, SY: 1}
	if w <= 0 || h <= 0 || (w == lastW && h == lastH) {
		return res
	}

	sc.surface.Resize(w, h)
	res = ResizeResult{
		Width:   w,
		Height:  h,
		SX:      float64(w) / float64(lastW),
		SY:      float64(h) / float64(lastH),
		Applied: true,
	}
	logrus.WithFields(logrus.Fields{
		"container_width": containerWidth,
		"width":           w,
		"height":          h,
	}).Debug("Surface resized")
	return res
}

// Observe applies container width events until ctx is done or widths is
// closed. Each resize runs inside exec.
func (sc *Scaler) Observe(ctx context.Context, exec Executor, widths <-chan int) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-widths:
			if !ok {
				return
			}
			exec.Do(func() { sc.Resize(w) })
		}
	}
}
