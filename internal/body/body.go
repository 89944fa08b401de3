// Package body defines the per-frame body tracking data consumed by the gesture core.
package body

import "github.com/ayusman/handcursor/internal/detector"

// HandState is the discrete state a tracker reports for one hand.
type HandState int

const (
	// Unknown means the hand is tracked but its pose could not be classified.
	Unknown HandState = iota
	// NotTracked means the hand joint is not tracked in this frame.
	NotTracked
	// Open is a flat, open palm.
	Open
	// Closed is a fist.
	Closed
	// Lasso is index and middle finger extended together.
	Lasso
)

// handStateNames is the single naming table for hand states.
var handStateNames = map[HandState]string{
	Unknown:    "Unknown",
	NotTracked: "Not tracked",
	Open:       "Open",
	Closed:     "Closed",
	Lasso:      "Lasso",
}

// String returns the display name of the state.
func (s HandState) String() string {
	if name, ok := handStateNames[s]; ok {
		return name
	}
	return "-"
}

// MarshalText encodes the state by its display name.
func (s HandState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a display name. Unrecognized names decode to Unknown.
func (s *HandState) UnmarshalText(text []byte) error {
	*s = ParseHandState(string(text))
	return nil
}

// ParseHandState returns the state with the given display name, or Unknown.
func ParseHandState(name string) HandState {
	for state, n := range handStateNames {
		if n == name {
			return state
		}
	}
	return Unknown
}

// Side identifies which hand a sample belongs to.
type Side string

const (
	Left  Side = "Left"
	Right Side = "Right"
)

// HandSample is one hand of one tracked body in one frame.
// Position is in sensor space with Y pointing up.
type HandSample struct {
	Position detector.Point3D `json:"position"`
	State    HandState        `json:"state"`
	Side     Side             `json:"side"`
}

// Tracked reports whether the sample carries a tracked hand.
func (h HandSample) Tracked() bool {
	return h.State != NotTracked
}

// Body is a single tracked person.
type Body struct {
	TrackingID uint64           `json:"tracking_id"`
	Head       detector.Point3D `json:"head"`
	Left       HandSample       `json:"left"`
	Right      HandSample       `json:"right"`
}

// Frame is everything the tracker reported for one sensor frame.
type Frame struct {
	Timestamp int64  `json:"timestamp"` // milliseconds
	Bodies    []Body `json:"bodies"`
}

// Nearest returns the body whose head is closest to the sensor.
// The first body wins on equal depth.
func Nearest(bodies []Body) (Body, bool) {
	if len(bodies) == 0 {
		return Body{}, false
	}

	nearest := bodies[0]
	for _, b := range bodies[1:] {
		if b.Head.Z < nearest.Head.Z {
			nearest = b
		}
	}
	return nearest, true
}
