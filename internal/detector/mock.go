package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns preconfigured hands. Safe for concurrent use.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that detects nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError makes Detect fail with err.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// WithHandedness returns a copy of h labelled as side ("Left" or "Right").
func WithHandedness(h HandLandmarks, side string) HandLandmarks {
	h.Handedness = side
	return h
}

// MoveTo returns a copy of h translated so its wrist sits at (x, y) in
// normalized image coordinates.
func MoveTo(h HandLandmarks, x, y float64) HandLandmarks {
	offset := Point3D{X: x, Y: y}.Sub(h.Points[Wrist])
	offset.Z = 0
	for i := range h.Points {
		h.Points[i].X += offset.X
		h.Points[i].Y += offset.Y
	}
	return h
}

// ThumbsUpLandmarks is a right hand with the thumb up and the other
// fingers curled.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	curlFingers(&landmarks)
	return landmarks
}

// FistLandmarks is a closed right hand: every finger curled, thumb folded
// across the palm.
func FistLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.93,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: -0.01}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.72, Z: -0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.54, Y: 0.70, Z: -0.05}
	landmarks.Points[ThumbTip] = Point3D{X: 0.51, Y: 0.70, Z: -0.06}

	curlFingers(&landmarks)
	return landmarks
}

// OpenPalmLandmarks is a right hand with every finger extended.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	extendIndex(&landmarks)
	extendMiddle(&landmarks)

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// LassoLandmarks is a right hand with index and middle finger extended
// together and the rest curled.
func LassoLandmarks() HandLandmarks {
	landmarks := FistLandmarks()
	landmarks.Score = 0.9

	extendIndex(&landmarks)
	extendMiddle(&landmarks)

	return landmarks
}

func extendIndex(h *HandLandmarks) {
	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	h.Points[IndexPIP] = Point3D{X: 0.54, Y: 0.55, Z: 0.0}
	h.Points[IndexDIP] = Point3D{X: 0.53, Y: 0.45, Z: 0.0}
	h.Points[IndexTip] = Point3D{X: 0.53, Y: 0.35, Z: 0.0}
}

func extendMiddle(h *HandLandmarks) {
	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	h.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	h.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	h.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}
}

// curlFingers folds index through pinky back toward the palm.
func curlFingers(h *HandLandmarks) {
	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	h.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	h.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	h.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	h.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	h.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	h.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	h.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	h.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	h.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	h.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	h.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	h.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	h.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	h.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	h.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}
}
