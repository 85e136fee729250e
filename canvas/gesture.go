package canvas

import "math"

const (
	MinGestureScale = 0.1
	MaxGestureScale = 10.0
)

type (
	GestureKind  string
	GesturePhase string

	Touch struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// GestureTracker remembers the distance and angle between two touches
	// of the previous gesture event.
	GestureTracker struct {
		kind      GestureKind
		active    bool
		prevDist  float64
		prevAngle float64
	}
)

const (
	GesturePinch  GestureKind = "pinch"
	GestureRotate GestureKind = "rotate"

	PhaseStart GesturePhase = "start"
	PhaseMove  GesturePhase = "move"
	PhaseEnd   GesturePhase = "end"
)

// Track consumes one event and returns the scale multiplier and rotation
// delta (degrees) since the previous event. ok is false when the event only
// (re)starts tracking.
func (g *GestureTracker) Track(kind GestureKind, a, b Touch) (scale, rotation float64, ok bool) {
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	angle := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi

	if !g.active || g.kind != kind || g.prevDist == 0 {
		g.kind, g.active = kind, true
		g.prevDist, g.prevAngle = dist, angle
		return 1, 0, false
	}

	scale = dist / g.prevDist
	scale = math.Max(MinGestureScale, math.Min(MaxGestureScale, scale))

	rotation = angle - g.prevAngle
	if rotation > 180 {
		rotation -= 360
	} else if rotation <= -180 {
		rotation += 360
	}

	g.prevDist, g.prevAngle = dist, angle
	return scale, rotation, true
}

func (g *GestureTracker) Reset() {
	*g = GestureTracker{}
}

func (g *GestureTracker) Active() bool { return g.active }
