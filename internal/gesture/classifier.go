// Package gesture turns per-frame hand samples into pointer intents.
package gesture

import (
	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/detector"
	"github.com/ayusman/handcursor/internal/pointer"
)

// Button records which mouse button the classifier last pressed.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeftDown
	ButtonRightDown
)

func (b Button) String() string {
	switch b {
	case ButtonLeftDown:
		return "left-down"
	case ButtonRightDown:
		return "right-down"
	default:
		return "none"
	}
}

// State is the gesture state kept per tracked body between frames.
// DragBaseline is only meaningful while DragActive is set.
type State struct {
	LastButton   Button  `json:"last_button"`
	DragBaseline float64 `json:"drag_baseline"`
	DragActive   bool    `json:"drag_active"`
}

// Kind enumerates pointer intents.
type Kind int

const (
	NoOp Kind = iota
	Move
	PressLeft
	ReleaseLeft
	ReleaseRight
	ClickRight
	ScrollBy
)

var kindNames = [...]string{
	NoOp:         "noop",
	Move:         "move",
	PressLeft:    "press-left",
	ReleaseLeft:  "release-left",
	ReleaseRight: "release-right",
	ClickRight:   "click-right",
	ScrollBy:     "scroll",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unknown names are NoOp.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	*k = NoOp
	return nil
}

// Intent is a single abstract pointer action.
type Intent struct {
	Kind  Kind          `json:"kind"`
	Point pointer.Pixel `json:"point"`
	Delta float64       `json:"delta,omitempty"`
}

// Result is the outcome of one classification pass.
// Move forwards the cursor position; Action carries a button or scroll intent.
// Released lists button releases for bodies whose state was dropped while a
// button was still down.
type Result struct {
	Released []Intent
	Move     Intent
	Action   Intent
}

// Intents returns the non-NoOp intents in emission order.
func (r Result) Intents() []Intent {
	out := append([]Intent(nil), r.Released...)
	if r.Move.Kind != NoOp {
		out = append(out, r.Move)
	}
	if r.Action.Kind != NoOp {
		out = append(out, r.Action)
	}
	return out
}

// Projector maps a sensor-space position to color-space pixels.
type Projector interface {
	Project(p detector.Point3D) pointer.Point
}

// ProjectorFunc adapts a function to the Projector interface.
type ProjectorFunc func(p detector.Point3D) pointer.Point

// Project calls f(p).
func (f ProjectorFunc) Project(p detector.Point3D) pointer.Point {
	return f(p)
}

// Classifier maps hand samples to pointer intents. It holds no per-body
// state; callers thread State through Step.
type Classifier struct {
	Mapper    pointer.Mapper
	Projector Projector
}

// NewClassifier creates a Classifier.
func NewClassifier(m pointer.Mapper, p Projector) *Classifier {
	return &Classifier{Mapper: m, Projector: p}
}

// screen projects a sensor position and maps it to screen space.
func (c *Classifier) screen(p detector.Point3D) pointer.Point {
	return c.Mapper.Map(c.Projector.Project(p))
}

// Step classifies one frame for one body and returns the new state.
func (c *Classifier) Step(left, right body.HandSample, st State) (Result, State) {
	active := ActiveHand(left, right)
	if active.State == body.NotTracked {
		return Result{}, st
	}

	res := Result{
		Move: Intent{Kind: Move, Point: pointer.Floor(c.screen(active.Position))},
	}

	if left.State == body.Closed && right.State == body.Closed {
		distance := pointer.Distance(c.screen(left.Position), c.screen(right.Position))
		if !st.DragActive {
			st.DragBaseline = distance
			st.DragActive = true
		}
		res.Action = Intent{Kind: ScrollBy, Delta: distance - st.DragBaseline}
		st.DragBaseline = distance
		return res, st
	}

	st.DragActive = false

	switch active.State {
	case body.Open:
		switch st.LastButton {
		case ButtonLeftDown:
			res.Action = Intent{Kind: ReleaseLeft}
		case ButtonRightDown:
			res.Action = Intent{Kind: ReleaseRight}
		}
		st.LastButton = ButtonNone
	case body.Closed:
		res.Action = Intent{Kind: PressLeft}
		st.LastButton = ButtonLeftDown
	case body.Lasso:
		if st.LastButton != ButtonRightDown {
			res.Action = Intent{Kind: ClickRight}
		}
		st.LastButton = ButtonRightDown
	}

	return res, st
}
