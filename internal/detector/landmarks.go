// Package detector provides hand landmark detection over camera frames.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// palmLandmarks are averaged to locate the hand as a whole.
var palmLandmarks = [...]int{Wrist, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}

// Point3D is a point in space. For detector output X and Y are
// image-normalized (0..1, Y down) and Z is depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p multiplied by f.
func (p Point3D) Scale(f float64) Point3D {
	return Point3D{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Length is the Euclidean norm of p.
func (p Point3D) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// HandLandmarks is one detected hand: 21 landmarks plus handedness.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Palm returns the centre of the palm (mean of wrist and finger MCPs).
func (h *HandLandmarks) Palm() Point3D {
	var sum Point3D
	for _, i := range palmLandmarks {
		sum.X += h.Points[i].X
		sum.Y += h.Points[i].Y
		sum.Z += h.Points[i].Z
	}
	return sum.Scale(1 / float64(len(palmLandmarks)))
}

// Normalize translates the landmarks so the wrist sits at the origin and
// scales them so the wrist to middle-finger MCP distance is 1.0.
// The result is independent of where the hand is in the frame and how far
// it is from the camera.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := range h.Points {
		normalized.Points[i] = h.Points[i].Sub(wrist)
	}

	scale := normalized.Points[MiddleMCP].Length()
	if scale < 1e-10 {
		return normalized
	}

	for i := range normalized.Points {
		normalized.Points[i] = normalized.Points[i].Scale(1 / scale)
	}

	return normalized
}
