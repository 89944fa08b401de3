// Package tracking turns detected hand landmarks into tracked bodies in
// sensor space, the shape the gesture classifier consumes.
package tracking

import (
	"sync"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/pointer"
)

// Classifier decides the open/closed/lasso state of a hand.
type Classifier interface {
	Classify(hand *detector.HandLandmarks) body.HandState
}

// Tracker groups the hands seen in a frame into a single body. A camera
// sees one user, so there is at most one body per frame; its tracking ID
// changes every time the user is re-acquired after a frame with no hands.
type Tracker struct {
	classifier Classifier

	mu      sync.Mutex
	mirror  bool
	id      uint64
	present bool
}

// NewTracker creates a tracker. With mirror set, X is flipped so the view
// behaves like a mirror for a user facing the camera.
func NewTracker(c Classifier, mirror bool) *Tracker {
	return &Tracker{classifier: c, mirror: mirror}
}

// SetMirror changes the mirror option.
func (t *Tracker) SetMirror(mirror bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirror = mirror
}

// Mirror reports the mirror option.
func (t *Tracker) Mirror() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mirror
}

// Track builds the frame for one set of detected hands. Handedness labels
// are taken as reported by the detector; when two hands claim the same
// side the higher score wins. A side with no hand is NotTracked.
func (t *Tracker) Track(hands []detector.HandLandmarks, timestamp int64) body.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := body.Frame{Timestamp: timestamp}

	var left, right *detector.HandLandmarks
	for i := range hands {
		h := &hands[i]
		switch body.Side(h.Handedness) {
		case body.Left:
			if left == nil || h.Score > left.Score {
				left = h
			}
		case body.Right:
			if right == nil || h.Score > right.Score {
				right = h
			}
		}
	}

	if left == nil && right == nil {
		t.present = false
		return frame
	}
	if !t.present {
		t.id++
		t.present = true
	}

	b := body.Body{
		TrackingID: t.id,
		Left:       t.sample(left, body.Left),
		Right:      t.sample(right, body.Right),
	}
	b.Head = head(b.Left, b.Right)

	frame.Bodies = []body.Body{b}
	return frame
}

func (t *Tracker) sample(h *detector.HandLandmarks, side body.Side) body.HandSample {
	if h == nil {
		return body.HandSample{State: body.NotTracked, Side: side}
	}

	state := body.Unknown
	if t.classifier != nil {
		state = t.classifier.Classify(h)
	}

	return body.HandSample{
		Position: t.toSensor(h.Palm()),
		State:    state,
		Side:     side,
	}
}

// toSensor converts image-normalized coordinates (Y down) to sensor space
// (Y up).
func (t *Tracker) toSensor(p detector.Point3D) detector.Point3D {
	x := p.X
	if t.mirror {
		x = 1 - x
	}
	return detector.Point3D{X: x, Y: 1 - p.Y, Z: p.Z}
}

// head approximates the head between the tracked hands. Only its depth is
// used, to pick the nearest body.
func head(left, right body.HandSample) detector.Point3D {
	switch {
	case left.Tracked() && right.Tracked():
		return detector.Point3D{X: (left.Position.X + right.Position.X) / 2, Y: 1}
	case left.Tracked():
		return detector.Point3D{X: left.Position.X, Y: 1}
	default:
		return detector.Point3D{X: right.Position.X, Y: 1}
	}
}

// ColorProjector maps sensor space to color-image pixels.
type ColorProjector struct {
	Width, Height float64
}

// NewColorProjector projects onto the default 1920x1080 color frame.
func NewColorProjector() ColorProjector {
	return ColorProjector{Width: pointer.DefaultSourceWidth, Height: pointer.DefaultSourceHeight}
}

// Project returns the color-space pixel for p. Points outside the frame
// and non-finite values are passed through for the mapper to handle.
func (c ColorProjector) Project(p detector.Point3D) pointer.Point {
	return pointer.Point{X: p.X * c.Width, Y: (1 - p.Y) * c.Height}
}
