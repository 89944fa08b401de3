package gesture

import (
	"sync"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/pointer"
)

// HandView is the display form of one hand in a Snapshot.
type HandView struct {
	State    string        `json:"state"`
	Position pointer.Pixel `json:"position"` // color space
	Active   bool          `json:"active"`
}

// Snapshot describes the outcome of processing one frame.
type Snapshot struct {
	Timestamp  int64         `json:"timestamp"`
	TrackingID uint64        `json:"tracking_id"`
	Bodies     int           `json:"bodies"`
	Left       HandView      `json:"left"`
	Right      HandView      `json:"right"`
	Distance   pointer.Pixel `json:"distance"` // right minus left, color space
	Wheel      bool          `json:"wheel"`
	State      State         `json:"state"`
	Intents    []Intent      `json:"intents"`
}

// Session owns the gesture state of every tracked body and drives the
// classifier for the nearest one.
type Session struct {
	mu         sync.Mutex
	classifier *Classifier
	states     map[uint64]State
}

// NewSession creates a Session around the given classifier.
func NewSession(c *Classifier) *Session {
	return &Session{
		classifier: c,
		states:     make(map[uint64]State),
	}
}

// SetMapper replaces the pointer mapper used for subsequent frames.
func (s *Session) SetMapper(m pointer.Mapper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier.Mapper = m
}

// Mapper returns the pointer mapper currently in use.
func (s *Session) Mapper() pointer.Mapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifier.Mapper
}

// Process classifies one frame. Only the nearest body drives the pointer.
// State for bodies absent from the frame is discarded, and any button such a
// body still held is reported in Result.Released. Returns false when the
// frame has no bodies.
func (s *Session) Process(frame body.Frame) (Result, Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint64]struct{}, len(frame.Bodies))
	for _, b := range frame.Bodies {
		seen[b.TrackingID] = struct{}{}
		if _, ok := s.states[b.TrackingID]; !ok {
			s.states[b.TrackingID] = State{}
		}
	}
	var released []Intent
	for id, st := range s.states {
		if _, ok := seen[id]; !ok {
			released = appendRelease(released, st)
			delete(s.states, id)
		}
	}

	nearest, ok := body.Nearest(frame.Bodies)
	if !ok {
		res := Result{Released: released}
		return res, Snapshot{Timestamp: frame.Timestamp, Intents: res.Intents()}, false
	}

	res, next := s.classifier.Step(nearest.Left, nearest.Right, s.states[nearest.TrackingID])
	res.Released = released
	s.states[nearest.TrackingID] = next

	return res, s.snapshot(frame, nearest, res, next), true
}

// ReleaseAll drops all gesture state and returns the releases for buttons
// that were still down.
func (s *Session) ReleaseAll() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []Intent
	for _, st := range s.states {
		released = appendRelease(released, st)
	}
	s.states = make(map[uint64]State)
	return Result{Released: released}
}

func appendRelease(out []Intent, st State) []Intent {
	switch st.LastButton {
	case ButtonLeftDown:
		return append(out, Intent{Kind: ReleaseLeft})
	case ButtonRightDown:
		return append(out, Intent{Kind: ReleaseRight})
	}
	return out
}

func (s *Session) snapshot(frame body.Frame, b body.Body, res Result, st State) Snapshot {
	left := s.classifier.Projector.Project(b.Left.Position)
	right := s.classifier.Projector.Project(b.Right.Position)
	active := ActiveHand(b.Left, b.Right)

	return Snapshot{
		Timestamp:  frame.Timestamp,
		TrackingID: b.TrackingID,
		Bodies:     len(frame.Bodies),
		Left: HandView{
			State:    b.Left.State.String(),
			Position: floorFinite(left),
			Active:   active.Side == body.Left,
		},
		Right: HandView{
			State:    b.Right.State.String(),
			Position: floorFinite(right),
			Active:   active.Side == body.Right,
		},
		Distance: floorFinite(pointer.Point{X: right.X - left.X, Y: right.Y - left.Y}),
		Wheel:    b.Left.State == body.Closed && b.Right.State == body.Closed,
		State:    st,
		Intents:  res.Intents(),
	}
}

func floorFinite(p pointer.Point) pointer.Pixel {
	return pointer.Floor(pointer.Point{X: pointer.Sanitize(p.X), Y: pointer.Sanitize(p.Y)})
}

// State returns the stored gesture state for a body.
func (s *Session) State(id uint64) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// Tracked returns the number of bodies with gesture state.
func (s *Session) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
